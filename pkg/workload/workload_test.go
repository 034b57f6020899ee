package workload

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/coco-policy/pkg/settings"
)

const statefulSetYAML = `apiVersion: apps/v1
kind: StatefulSet
metadata:
  name: web
  namespace: prod
spec:
  serviceName: nginx
  replicas: 2
  selector:
    matchLabels:
      app: nginx
  template:
    metadata:
      annotations:
        team: storage
      labels:
        app: nginx
    spec:
      shareProcessNamespace: true
      containers:
        - name: nginx
          image: "nginx:1.25"
          volumeMounts:
            - mountPath: /usr/share/nginx/html
              name: www
              mountPropagation: Bidirectional
            - mountPath: /etc/nginx/conf.d
              name: conf
              readOnly: true
      volumes:
        - name: conf
          configMap:
            name: nginx-conf
  volumeClaimTemplates:
    - metadata:
        name: www
      spec:
        accessModes:
          - ReadWriteOnce
        storageClassName: managed-csi
        resources:
          requests:
            storage: 1Gi
`

const daemonSetYAML = `apiVersion: apps/v1
kind: DaemonSet
metadata:
  name: node-agent
spec:
  selector:
    matchLabels:
      app: node-agent
  template:
    metadata:
      labels:
        app: node-agent
    spec:
      hostNetwork: true
      containers:
        - name: agent
          image: "agent:latest"
          volumeMounts:
            - mountPath: /var/lib/agent
              name: state
            - mountPath: /missing
              name: not-declared
      volumes:
        - name: state
          emptyDir: {}
`

func testSettings() *settings.Settings {
	return &settings.Settings{Common: settings.Common{
		VirtioBlkStorageClasses: []string{"managed-csi"},
		SMBStorageClasses:       []string{"smb-share"},
	}}
}

func parseResource(t *testing.T, manifest string) K8sResource {
	t.Helper()
	resource, doc, err := Parse([]byte(manifest))
	require.NoError(t, err)
	require.NoError(t, resource.Init(testSettings(), doc))
	return resource
}

func TestParseUnsupportedKind(t *testing.T) {
	_, _, err := Parse([]byte("apiVersion: v1\nkind: Service\nmetadata:\n  name: svc\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported workload kind")
}

func TestStatefulSetAccessors(t *testing.T) {
	resource := parseResource(t, statefulSetYAML)

	assert.Equal(t, "", resource.SandboxName())
	assert.Equal(t, "prod", resource.Namespace())
	assert.True(t, resource.UseSandboxPIDNS())
	assert.False(t, resource.UseHostNetwork())
	assert.Equal(t, map[string]string{"team": "storage"}, resource.Annotations())

	containers := resource.Containers()
	require.Len(t, containers, 1)
	assert.Equal(t, "nginx", containers[0].Name)
}

func TestDaemonSetAccessors(t *testing.T) {
	resource := parseResource(t, daemonSetYAML)

	assert.Equal(t, "", resource.SandboxName())
	assert.Equal(t, "", resource.Namespace())
	assert.True(t, resource.UseHostNetwork())
	assert.False(t, resource.UseSandboxPIDNS())
	assert.Nil(t, resource.Annotations())
}

// A claim template named "www" bound to a block-device storage class, mounted
// with Bidirectional propagation and no readOnly field, must resolve to a
// shared, read-write, block-device-backed mount.
func TestStatefulSetClaimTemplateResolution(t *testing.T) {
	resource := parseResource(t, statefulSetYAML)
	containers := resource.Containers()
	require.Len(t, containers, 1)

	mounts, storages := resource.ContainerMountsAndStorages(&containers[0])
	require.Len(t, mounts, 2)
	require.Len(t, storages, 2)

	// conf resolves against the pod volume list first.
	conf := mounts[0]
	assert.Equal(t, "conf", conf.Name)
	assert.Equal(t, "/etc/nginx/conf.d", conf.Destination)
	assert.Equal(t, "configMap", conf.Type)
	assert.Equal(t, PropagationPrivate, conf.Propagation)
	assert.Equal(t, AccessReadOnly, conf.Access)
	assert.Equal(t, StorageDefault, conf.Storage)

	www := mounts[1]
	assert.Equal(t, "www", www.Name)
	assert.Equal(t, "/usr/share/nginx/html", www.Destination)
	assert.Equal(t, "persistentVolumeClaim", www.Type)
	assert.Equal(t, PropagationShared, www.Propagation)
	assert.Equal(t, AccessReadWrite, www.Access)
	assert.Equal(t, StorageBlockDevice, www.Storage)

	assert.Equal(t, Storage{Name: "www", Kind: StorageBlockDevice, StorageClass: "managed-csi"}, storages[1])
}

func TestStatefulSetStorageClassClassification(t *testing.T) {
	tests := []struct {
		name  string
		class string
		want  StorageKind
	}{
		{"block device class", "managed-csi", StorageBlockDevice},
		{"network share class", "smb-share", StorageNetworkShare},
		{"unknown class", "some-other", StorageDefault},
		{"no class", "", StorageDefault},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			manifest := statefulSetYAML
			if tc.class == "" {
				manifest = replaceLine(manifest, "        storageClassName: managed-csi\n", "")
			} else {
				manifest = replaceLine(manifest, "storageClassName: managed-csi", "storageClassName: "+tc.class)
			}
			resource := parseResource(t, manifest)
			containers := resource.Containers()
			mounts, _ := resource.ContainerMountsAndStorages(&containers[0])
			require.Len(t, mounts, 2)
			assert.Equal(t, tc.want, mounts[1].Storage)
		})
	}
}

func TestDaemonSetMountResolutionSkipsUndeclared(t *testing.T) {
	resource := parseResource(t, daemonSetYAML)
	containers := resource.Containers()
	require.Len(t, containers, 1)

	mounts, storages := resource.ContainerMountsAndStorages(&containers[0])
	require.Len(t, mounts, 1)
	require.Len(t, storages, 1)
	assert.Equal(t, "state", mounts[0].Name)
	assert.Equal(t, "emptyDir", mounts[0].Type)
	assert.Equal(t, AccessReadWrite, mounts[0].Access)
	assert.Equal(t, PropagationPrivate, mounts[0].Propagation)
}

func replaceLine(manifest, old, new string) string {
	return strings.Replace(manifest, old, new, 1)
}
