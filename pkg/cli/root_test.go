package cli

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/telekom/coco-policy/pkg/workload"
)

const manifest = `apiVersion: apps/v1
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
      containers:
        - name: agent
          image: "agent:latest"
`

func writeFixtures(t *testing.T) (yamlPath, settingsPath string) {
	t.Helper()
	dir := t.TempDir()
	yamlPath = filepath.Join(dir, "daemonset.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(manifest), 0o600))
	settingsPath = filepath.Join(dir, "genpolicy-settings.json")
	require.NoError(t, os.WriteFile(settingsPath, []byte(`{"common":{"virtio_blk_storage_classes":[],"smb_storage_classes":[]}}`), 0o600))
	return yamlPath, settingsPath
}

func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand(Config{OutputWriter: &out})
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestGenerateWritesPatchedManifest(t *testing.T) {
	yamlPath, settingsPath := writeFixtures(t)

	out := runCommand(t, "-y", yamlPath, "-j", settingsPath)

	var patched map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &patched))
	spec := patched["spec"].(map[string]any)
	template := spec["template"].(map[string]any)
	metadata := template["metadata"].(map[string]any)
	annotations := metadata["annotations"].(map[string]any)

	encoded, ok := annotations[workload.PolicyAnnotationKey].(string)
	require.True(t, ok, "missing policy annotation")
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Contains(t, string(decoded), "package agent_policy")
	assert.Contains(t, string(decoded), `"image": "agent:latest"`)
}

func TestGenerateInPlace(t *testing.T) {
	yamlPath, settingsPath := writeFixtures(t)

	runCommand(t, "-y", yamlPath, "-j", settingsPath, "-i")

	data, err := os.ReadFile(yamlPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), workload.PolicyAnnotationKey)
}

func TestGenerateMissingManifest(t *testing.T) {
	_, settingsPath := writeFixtures(t)
	cmd := NewRootCommand(Config{OutputWriter: &bytes.Buffer{}})
	cmd.SetArgs([]string{"-y", filepath.Join(t.TempDir(), "nope.yaml"), "-j", settingsPath})
	assert.Error(t, cmd.Execute())
}

func TestVersionCommand(t *testing.T) {
	out := runCommand(t, "version")
	assert.Contains(t, out, "genpolicy")
}
