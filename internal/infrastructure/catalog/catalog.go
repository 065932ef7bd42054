package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

//go:embed default_catalog.hcl
var defaultCatalog []byte

// DefaultStyle is used for kinds imported from a diagrams module the catalog
// does not describe.
var DefaultStyle = Style{Shape: "box", Color: "#FFFFFF"}

type Style struct {
	Shape string
	Color string
}

// Kind is a node class such as EC2 or RDS.
type Kind struct {
	Name     string
	Provider string
	Category string
	Style    Style
}

type catalogFile struct {
	Providers []providerBlock `hcl:"provider,block"`
}

type providerBlock struct {
	Name       string          `hcl:"name,label"`
	Categories []categoryBlock `hcl:"category,block"`
}

type categoryBlock struct {
	Name  string   `hcl:"name,label"`
	Shape string   `hcl:"shape,optional"`
	Color string   `hcl:"color,optional"`
	Kinds []string `hcl:"kinds"`
}

type Catalog struct {
	// bare class name -> first declaration in file order
	byName map[string]Kind
	// "provider.category" -> class name -> kind
	byModule map[string]map[string]Kind
	styles   map[string]Style
}

func Parse(filename string, src []byte) (*Catalog, error) {
	var file catalogFile
	if err := hclsimple.Decode(filename, src, nil, &file); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", filename, err)
	}

	c := &Catalog{
		byName:   make(map[string]Kind),
		byModule: make(map[string]map[string]Kind),
		styles:   make(map[string]Style),
	}
	for _, p := range file.Providers {
		for _, cat := range p.Categories {
			style := Style{Shape: cat.Shape, Color: cat.Color}
			if style.Shape == "" {
				style.Shape = DefaultStyle.Shape
			}
			if style.Color == "" {
				style.Color = DefaultStyle.Color
			}
			module := moduleKey(p.Name, cat.Name)
			c.styles[module] = style
			if c.byModule[module] == nil {
				c.byModule[module] = make(map[string]Kind)
			}
			for _, name := range cat.Kinds {
				k := Kind{Name: name, Provider: p.Name, Category: cat.Name, Style: style}
				c.byModule[module][name] = k
				if _, seen := c.byName[name]; !seen {
					c.byName[name] = k
				}
			}
		}
	}
	return c, nil
}

// Load reads a catalog file from disk.
func Load(path string) (*Catalog, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	// hclsimple picks the syntax from the extension
	return Parse(filepath.Base(path), src)
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse("default_catalog.hcl", defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup finds a kind by bare class name.
func (c *Catalog) Lookup(name string) (Kind, bool) {
	k, ok := c.byName[name]
	return k, ok
}

// LookupModule resolves a class imported from diagrams.<provider>.<category>.
// Classes the catalog does not list still resolve, with the category style
// when the module is known and DefaultStyle otherwise.
func (c *Catalog) LookupModule(provider, category, name string) Kind {
	module := moduleKey(provider, category)
	if k, ok := c.byModule[module][name]; ok {
		return k
	}
	style, ok := c.styles[module]
	if !ok {
		style = DefaultStyle
	}
	return Kind{Name: name, Provider: provider, Category: category, Style: style}
}

func (c *Catalog) Len() int {
	return len(c.byName)
}

func moduleKey(provider, category string) string {
	return provider + "." + category
}
