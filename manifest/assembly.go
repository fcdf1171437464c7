package manifest

import (
	"strconv"

	"github.com/beevik/etree"
)

const nsAsmV3 = "urn:schemas-microsoft-com:asm.v3"

// Requested execution levels understood by the Windows loader.
const (
	AsInvoker            = "asInvoker"
	HighestAvailable     = "highestAvailable"
	RequireAdministrator = "requireAdministrator"
)

// Identity is the assemblyIdentity of a manifest.
type Identity struct {
	Name                  string
	Version               string
	Type                  string
	ProcessorArchitecture string
	PublicKeyToken        string
}

// Identity returns the manifest's own assembly identity. ok is false when the
// document has none.
func (m *Manifest) Identity() (id Identity, ok bool) {
	el := findChild(m.root(), "assemblyIdentity")
	if el == nil {
		return Identity{}, false
	}
	return Identity{
		Name:                  el.SelectAttrValue("name", ""),
		Version:               el.SelectAttrValue("version", ""),
		Type:                  el.SelectAttrValue("type", ""),
		ProcessorArchitecture: el.SelectAttrValue("processorArchitecture", ""),
		PublicKeyToken:        el.SelectAttrValue("publicKeyToken", ""),
	}, true
}

// SetIdentity creates or updates the assemblyIdentity element. Empty fields
// are removed.
func (m *Manifest) SetIdentity(id Identity) {
	root := m.root()
	if root == nil {
		return
	}
	el := findChild(root, "assemblyIdentity")
	if el == nil {
		el = etree.NewElement("assemblyIdentity")
		root.InsertChildAt(0, el)
	}
	setOrRemove(el, "type", id.Type)
	setOrRemove(el, "name", id.Name)
	setOrRemove(el, "version", id.Version)
	setOrRemove(el, "processorArchitecture", id.ProcessorArchitecture)
	setOrRemove(el, "publicKeyToken", id.PublicKeyToken)
}

// ExecutionLevel returns the requested UAC execution level and uiAccess flag.
// level is empty when the manifest does not request one.
func (m *Manifest) ExecutionLevel() (level string, uiAccess bool) {
	el := findDescendant(m.root(), "requestedExecutionLevel")
	if el == nil {
		return "", false
	}
	ui, _ := strconv.ParseBool(el.SelectAttrValue("uiAccess", "false"))
	return el.SelectAttrValue("level", ""), ui
}

// SetExecutionLevel sets the requested UAC execution level, creating the
// trustInfo block when needed.
func (m *Manifest) SetExecutionLevel(level string, uiAccess bool) {
	root := m.root()
	if root == nil {
		return
	}
	el := findDescendant(root, "requestedExecutionLevel")
	if el == nil {
		parent := root
		for _, tag := range []string{"trustInfo", "security", "requestedPrivileges"} {
			next := findChild(parent, tag)
			if next == nil {
				next = parent.CreateElement(tag)
				if tag == "trustInfo" {
					next.CreateAttr("xmlns", nsAsmV3)
				}
			}
			parent = next
		}
		el = parent.CreateElement("requestedExecutionLevel")
	}
	el.CreateAttr("level", level)
	el.CreateAttr("uiAccess", strconv.FormatBool(uiAccess))
}

func (m *Manifest) root() *etree.Element {
	if m.Doc == nil {
		return nil
	}
	return m.Doc.Root()
}

func setOrRemove(el *etree.Element, key, value string) {
	if value == "" {
		el.RemoveAttr(key)
		return
	}
	el.CreateAttr(key, value)
}

// findChild matches on the local tag name so namespace prefixes such as
// ms_asmv3: do not matter.
func findChild(el *etree.Element, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

func findDescendant(el *etree.Element, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			return c
		}
		if found := findDescendant(c, tag); found != nil {
			return found
		}
	}
	return nil
}
