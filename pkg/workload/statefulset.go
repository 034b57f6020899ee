package workload

import (
	"errors"

	"gopkg.in/yaml.v3"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/telekom/coco-policy/pkg/settings"
)

// StatefulSet is the workload variant for apps/v1 StatefulSet manifests. On
// top of the shared pod-volume resolution it matches container mounts against
// the volume claim templates the StatefulSet declares.
type StatefulSet struct {
	obj appsv1.StatefulSet
	cfg *settings.Settings
	doc *yaml.Node
}

func newStatefulSet(data []byte) (K8sResource, error) {
	var ss StatefulSet
	if err := sigsyaml.Unmarshal(data, &ss.obj); err != nil {
		return nil, err
	}
	return &ss, nil
}

func (s *StatefulSet) Init(cfg *settings.Settings, doc *yaml.Node) error {
	if cfg == nil {
		return errors.New("statefulset: nil settings")
	}
	if doc == nil {
		return errors.New("statefulset: nil document tree")
	}
	s.cfg = cfg
	s.doc = doc
	return nil
}

func (s *StatefulSet) Kind() string {
	return "StatefulSet"
}

// SandboxName returns "": a StatefulSet has no sandbox identity of its own.
func (s *StatefulSet) SandboxName() string {
	return ""
}

func (s *StatefulSet) Namespace() string {
	return s.obj.ObjectMeta.Namespace
}

func (s *StatefulSet) Containers() []corev1.Container {
	return s.obj.Spec.Template.Spec.Containers
}

func (s *StatefulSet) Annotations() map[string]string {
	return s.obj.Spec.Template.ObjectMeta.Annotations
}

func (s *StatefulSet) UseHostNetwork() bool {
	return s.obj.Spec.Template.Spec.HostNetwork
}

func (s *StatefulSet) UseSandboxPIDNS() bool {
	shared := s.obj.Spec.Template.Spec.ShareProcessNamespace
	return shared != nil && *shared
}

// ContainerMountsAndStorages resolves ordinary pod volumes first, then the
// claim templates. Example:
//
//	containers:
//	  - name: nginx
//	    volumeMounts:
//	      - mountPath: /usr/share/nginx/html
//	        name: www
//	volumeClaimTemplates:
//	  - metadata:
//	      name: www
//	    spec:
//	      storageClassName: managed-csi
func (s *StatefulSet) ContainerMountsAndStorages(container *corev1.Container) ([]Mount, []Storage) {
	var mounts []Mount
	var storages []Storage
	if volumes := s.obj.Spec.Template.Spec.Volumes; len(volumes) > 0 {
		mounts, storages = resolvePodVolumes(mounts, storages, container, volumes)
	}
	if claims := s.obj.Spec.VolumeClaimTemplates; len(claims) > 0 && len(container.VolumeMounts) > 0 {
		mounts, storages = resolveClaimTemplates(mounts, storages, s.cfg, container.VolumeMounts, claims)
	}
	return mounts, storages
}

func (s *StatefulSet) GeneratePolicy(g Generator) (string, error) {
	return g.GeneratePolicy(s)
}

func (s *StatefulSet) PatchAndSerialize(policy string) ([]byte, error) {
	if err := addPolicyAnnotation(s.doc, policy); err != nil {
		return nil, err
	}
	return serializeDocument(s.doc)
}
