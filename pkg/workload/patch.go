package workload

import (
	"bytes"
	"encoding/base64"
	"errors"

	"gopkg.in/yaml.v3"
)

// PolicyAnnotationKey is the annotation the runtime reads the policy from.
const PolicyAnnotationKey = "io.katacontainers.config.agent.policy"

// policyAnnotationPath locates the pod template metadata inside the workload
// document. Both supported kinds carry their template at the same path.
var policyAnnotationPath = []string{"spec", "template", "metadata", "annotations"}

// addPolicyAnnotation writes the base64-encoded policy text into the document
// tree at the template annotation path, creating intermediate mappings as
// needed and leaving every other node untouched.
func addPolicyAnnotation(doc *yaml.Node, policy string) error {
	root := documentRoot(doc)
	if root == nil {
		return errors.New("patch: document has no mapping root")
	}

	node := root
	for _, key := range policyAnnotationPath {
		child, err := ensureMapEntry(node, key)
		if err != nil {
			return err
		}
		node = child
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(policy))
	setMapEntry(node, PolicyAnnotationKey, encoded)
	return nil
}

func serializeDocument(doc *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc == nil {
		return nil
	}
	node := doc
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil
		}
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return nil
	}
	return node
}

// mapEntry returns the value node for key, or nil.
func mapEntry(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// ensureMapEntry returns the mapping value for key, appending an empty
// mapping when the key is absent.
func ensureMapEntry(m *yaml.Node, key string) (*yaml.Node, error) {
	if existing := mapEntry(m, key); existing != nil {
		if existing.Kind != yaml.MappingNode && !(existing.Kind == yaml.ScalarNode && existing.Tag == "!!null") {
			return nil, errors.New("patch: " + key + " is not a mapping")
		}
		if existing.Kind == yaml.ScalarNode {
			// An explicit `annotations:` with no entries parses as null.
			existing.Kind = yaml.MappingNode
			existing.Tag = "!!map"
			existing.Value = ""
		}
		return existing, nil
	}

	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	valueNode := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	m.Content = append(m.Content, keyNode, valueNode)
	return valueNode, nil
}

// setMapEntry sets key to a string scalar, replacing an existing value.
func setMapEntry(m *yaml.Node, key, value string) {
	if existing := mapEntry(m, key); existing != nil {
		existing.Kind = yaml.ScalarNode
		existing.Tag = "!!str"
		existing.Value = value
		existing.Content = nil
		return
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value},
	)
}
