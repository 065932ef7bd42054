package entity

type Prompt struct {
	ID   string
	Text string
}

const diagramPrompt = `Generate Python code for creating an architecture diagram using the 'diagrams' package.

IMPORTANT: Return ONLY the Python code, no explanations or additional text.
The code MUST start with imports and follow this EXACT structure:

from diagrams import Diagram, Cluster
from diagrams.aws.compute import EC2
from diagrams.aws.database import RDS
from diagrams.aws.network import ELB

def generate_diagram():
    with Diagram("AWS Architecture", show=False, direction="LR"):
        # Your diagram components and connections here
        # Example:
        # lb = ELB("Load Balancer")
        # with Cluster("EC2 Instances"):
        #     servers = [EC2("Server 1"), EC2("Server 2")]
        # db = RDS("Database")
        # lb >> servers >> db

if __name__ == "__main__":
    generate_diagram()

RULES:
1. Include ALL necessary imports at the top
2. Use proper Python indentation
3. Make sure all nodes are properly connected using >> or << operators
4. Group related components using Cluster when appropriate
5. Give descriptive names to components
6. Only use node assignments, lists of nodes, Cluster blocks, Edge(label=...) and the >>, << and - operators inside the Diagram block. No loops, helper functions or other statements.`

var DiagramPrompt = Prompt{
	ID:   "diagrams",
	Text: diagramPrompt,
}

// RequiredMarkers must all appear in generated code for it to be accepted.
var RequiredMarkers = []string{
	"from diagrams import Diagram",
	"def generate_diagram():",
	"with Diagram(",
	`if __name__ == "__main__":`,
}

// FallbackDiagramCode is substituted for malformed model output when the
// template fallback policy is enabled.
const FallbackDiagramCode = `from diagrams import Diagram, Cluster
from diagrams.aws.compute import EC2
from diagrams.aws.database import RDS
from diagrams.aws.network import ELB

def generate_diagram():
    with Diagram("AWS Architecture", show=False, direction="LR"):
        lb = ELB("Load Balancer")
        with Cluster("Web Tier"):
            servers = [EC2("Server 1"), EC2("Server 2")]
        db = RDS("Database")
        lb >> servers >> db

if __name__ == "__main__":
    generate_diagram()
`
