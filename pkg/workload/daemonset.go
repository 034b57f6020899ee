package workload

import (
	"errors"

	"gopkg.in/yaml.v3"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/telekom/coco-policy/pkg/settings"
)

// DaemonSet is the workload variant for apps/v1 DaemonSet manifests.
type DaemonSet struct {
	obj appsv1.DaemonSet
	cfg *settings.Settings
	doc *yaml.Node
}

func newDaemonSet(data []byte) (K8sResource, error) {
	var ds DaemonSet
	if err := sigsyaml.Unmarshal(data, &ds.obj); err != nil {
		return nil, err
	}
	return &ds, nil
}

func (d *DaemonSet) Init(cfg *settings.Settings, doc *yaml.Node) error {
	if cfg == nil {
		return errors.New("daemonset: nil settings")
	}
	if doc == nil {
		return errors.New("daemonset: nil document tree")
	}
	d.cfg = cfg
	d.doc = doc
	return nil
}

func (d *DaemonSet) Kind() string {
	return "DaemonSet"
}

// SandboxName returns "": a DaemonSet has no sandbox identity of its own.
func (d *DaemonSet) SandboxName() string {
	return ""
}

func (d *DaemonSet) Namespace() string {
	return d.obj.ObjectMeta.Namespace
}

func (d *DaemonSet) Containers() []corev1.Container {
	return d.obj.Spec.Template.Spec.Containers
}

func (d *DaemonSet) Annotations() map[string]string {
	return d.obj.Spec.Template.ObjectMeta.Annotations
}

func (d *DaemonSet) UseHostNetwork() bool {
	return d.obj.Spec.Template.Spec.HostNetwork
}

func (d *DaemonSet) UseSandboxPIDNS() bool {
	shared := d.obj.Spec.Template.Spec.ShareProcessNamespace
	return shared != nil && *shared
}

func (d *DaemonSet) ContainerMountsAndStorages(container *corev1.Container) ([]Mount, []Storage) {
	var mounts []Mount
	var storages []Storage
	if volumes := d.obj.Spec.Template.Spec.Volumes; len(volumes) > 0 {
		mounts, storages = resolvePodVolumes(mounts, storages, container, volumes)
	}
	return mounts, storages
}

func (d *DaemonSet) GeneratePolicy(g Generator) (string, error) {
	return g.GeneratePolicy(d)
}

func (d *DaemonSet) PatchAndSerialize(policy string) ([]byte, error) {
	if err := addPolicyAnnotation(d.doc, policy); err != nil {
		return nil, err
	}
	return serializeDocument(d.doc)
}
