package workload

import (
	corev1 "k8s.io/api/core/v1"

	"github.com/telekom/coco-policy/pkg/settings"
)

// StorageKind classifies the storage backing a resolved volume mount.
type StorageKind string

const (
	// StorageBlockDevice is storage attached to the guest as a virtio
	// block device.
	StorageBlockDevice StorageKind = "block-device"
	// StorageNetworkShare is storage mounted as an SMB network share.
	StorageNetworkShare StorageKind = "network-share"
	// StorageDefault is every other backing, including ephemeral volumes.
	StorageDefault StorageKind = "default"
)

// Propagation is the normalized mount propagation mode.
type Propagation string

const (
	PropagationShared  Propagation = "rshared"
	PropagationPrivate Propagation = "rprivate"
)

// Access is the normalized mount access mode.
type Access string

const (
	AccessReadOnly  Access = "ro"
	AccessReadWrite Access = "rw"
)

// Mount is the workload-kind-independent record describing where and how a
// volume is attached to a container.
type Mount struct {
	Name        string      `json:"name"`
	Destination string      `json:"destination"`
	Type        string      `json:"type"`
	Propagation Propagation `json:"propagation"`
	Access      Access      `json:"access"`
	Storage     StorageKind `json:"storage"`
}

// Storage is the record for one distinct backing volume referenced by at
// least one resolved mount.
type Storage struct {
	Name         string      `json:"name"`
	Kind         StorageKind `json:"kind"`
	StorageClass string      `json:"storage_class,omitempty"`
}

// propagationFor maps the manifest mount propagation to a normalized mode.
// "Bidirectional" is the only value that produces a shared mount; everything
// else, including absence, stays private.
func propagationFor(vm *corev1.VolumeMount) Propagation {
	if vm.MountPropagation != nil && *vm.MountPropagation == corev1.MountPropagationBidirectional {
		return PropagationShared
	}
	return PropagationPrivate
}

func accessFor(vm *corev1.VolumeMount) Access {
	if vm.ReadOnly {
		return AccessReadOnly
	}
	return AccessReadWrite
}

func volumeType(v *corev1.Volume) string {
	switch {
	case v.EmptyDir != nil:
		return "emptyDir"
	case v.ConfigMap != nil:
		return "configMap"
	case v.Secret != nil:
		return "secret"
	case v.HostPath != nil:
		return "hostPath"
	case v.PersistentVolumeClaim != nil:
		return "persistentVolumeClaim"
	case v.Projected != nil:
		return "projected"
	case v.DownwardAPI != nil:
		return "downwardAPI"
	default:
		return "other"
	}
}

// appendStorage records a backing volume once per name.
func appendStorage(storages []Storage, s Storage) []Storage {
	for i := range storages {
		if storages[i].Name == s.Name {
			return storages
		}
	}
	return append(storages, s)
}

// resolvePodVolumes resolves a container's volume mounts against the
// workload-level volume list. Mounts that reference no declared volume are
// skipped; other resolution stages may still know them.
func resolvePodVolumes(mounts []Mount, storages []Storage, container *corev1.Container, volumes []corev1.Volume) ([]Mount, []Storage) {
	for i := range container.VolumeMounts {
		vm := &container.VolumeMounts[i]
		for j := range volumes {
			v := &volumes[j]
			if v.Name != vm.Name {
				continue
			}
			mounts = append(mounts, Mount{
				Name:        vm.Name,
				Destination: vm.MountPath,
				Type:        volumeType(v),
				Propagation: propagationFor(vm),
				Access:      accessFor(vm),
				Storage:     StorageDefault,
			})
			storages = appendStorage(storages, Storage{Name: v.Name, Kind: StorageDefault})
			break
		}
	}
	return mounts, storages
}

// resolveClaimTemplates matches volume mounts against StatefulSet claim
// templates by name and classifies the backing storage through the configured
// storage-class tables. Block-device classes take priority over network-share
// classes.
func resolveClaimTemplates(mounts []Mount, storages []Storage, cfg *settings.Settings, volumeMounts []corev1.VolumeMount, claims []corev1.PersistentVolumeClaim) ([]Mount, []Storage) {
	for i := range volumeMounts {
		vm := &volumeMounts[i]
		for j := range claims {
			claim := &claims[j]
			if claim.Name == "" || claim.Name != vm.Name {
				continue
			}

			kind := StorageDefault
			class := ""
			if claim.Spec.StorageClassName != nil {
				class = *claim.Spec.StorageClassName
			}
			switch {
			case class != "" && cfg.IsVirtioBlkStorageClass(class):
				kind = StorageBlockDevice
			case class != "" && cfg.IsSMBStorageClass(class):
				kind = StorageNetworkShare
			}

			mounts = append(mounts, Mount{
				Name:        vm.Name,
				Destination: vm.MountPath,
				Type:        "persistentVolumeClaim",
				Propagation: propagationFor(vm),
				Access:      accessFor(vm),
				Storage:     kind,
			})
			storages = appendStorage(storages, Storage{Name: claim.Name, Kind: kind, StorageClass: class})
		}
	}
	return mounts, storages
}
