package workload

import (
	"fmt"

	"gopkg.in/yaml.v3"
	corev1 "k8s.io/api/core/v1"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/telekom/coco-policy/pkg/settings"
)

// Generator produces the policy text for a fully normalized resource. It is
// satisfied by generate.Generator.
type Generator interface {
	GeneratePolicy(r K8sResource) (string, error)
}

// K8sResource is the uniform view of a workload manifest, independent of the
// kind-specific schema behind it.
type K8sResource interface {
	// Init normalizes the resource and retains the original document tree
	// for later patching.
	Init(cfg *settings.Settings, doc *yaml.Node) error

	// Kind returns the manifest kind, e.g. "StatefulSet".
	Kind() string

	// SandboxName returns the pod sandbox name, or "" for workload kinds
	// that have no sandbox identity of their own.
	SandboxName() string

	// Namespace returns the manifest namespace, or "" when unset.
	Namespace() string

	// Containers returns the pod template containers in manifest order.
	// Ordinal position is security relevant for fan-out policy rules.
	Containers() []corev1.Container

	// Annotations returns the pod template annotations, possibly nil.
	Annotations() map[string]string

	UseHostNetwork() bool
	UseSandboxPIDNS() bool

	// ContainerMountsAndStorages resolves one container's volume mounts
	// into normalized mount and storage records.
	ContainerMountsAndStorages(container *corev1.Container) ([]Mount, []Storage)

	// GeneratePolicy renders the policy text for this resource.
	GeneratePolicy(g Generator) (string, error)

	// PatchAndSerialize writes the policy text into the retained document
	// at the template-level annotation path and re-renders the document.
	PatchAndSerialize(policy string) ([]byte, error)
}

type resourceFactory func(data []byte) (K8sResource, error)

// kindRegistry dispatches manifest kinds to their variant constructors. The
// two kinds here are the ones this compiler supports; further kinds register
// the same way.
var kindRegistry = map[string]resourceFactory{
	"DaemonSet":   newDaemonSet,
	"StatefulSet": newStatefulSet,
}

type typeHeader struct {
	APIVersion string `json:"apiVersion"`
	Kind       string `json:"kind"`
}

// Parse decodes a single manifest document into its workload variant and the
// schema-agnostic document tree kept for patching. The two views stay in
// lock-step: the typed view is read, only the tree is ever mutated.
func Parse(data []byte) (K8sResource, *yaml.Node, error) {
	var header typeHeader
	if err := sigsyaml.Unmarshal(data, &header); err != nil {
		return nil, nil, fmt.Errorf("parsing manifest header: %w", err)
	}

	factory, ok := kindRegistry[header.Kind]
	if !ok {
		return nil, nil, fmt.Errorf("unsupported workload kind %q", header.Kind)
	}
	resource, err := factory(data)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s manifest: %w", header.Kind, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parsing manifest document tree: %w", err)
	}
	return resource, &doc, nil
}
