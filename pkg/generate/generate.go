package generate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/open-policy-agent/opa/ast"
	"go.uber.org/zap"

	"github.com/telekom/coco-policy/pkg/metrics"
	"github.com/telekom/coco-policy/pkg/workload"
)

// containerData is the per-container slice of the generated policy data.
type containerData struct {
	Name     string             `json:"name"`
	Image    string             `json:"image"`
	Mounts   []workload.Mount   `json:"mounts"`
	Storages []workload.Storage `json:"storages"`
}

// policyData is the document embedded into the generated policy. The agent's
// rules compare incoming requests against it.
type policyData struct {
	Kind        string            `json:"kind"`
	Namespace   string            `json:"namespace"`
	SandboxName string            `json:"sandbox_name,omitempty"`
	HostNetwork bool              `json:"host_network"`
	SharedPID   bool              `json:"shared_pid_namespace"`
	Annotations map[string]string `json:"annotations,omitempty"`
	Containers  []containerData   `json:"containers"`
}

// policyTemplate is the rego skeleton. CreateContainerRequest fans out over
// the container list by ordinal position; the remaining endpoints get the
// static defaults the runtime relies on.
const policyTemplate = `package agent_policy

policy_data := {{.PolicyData}}

default CreateContainerRequest = false

CreateContainerRequest {
	some i
	container := policy_data.containers[i]
	print("CreateContainerRequest: checking container", i)
	input.image == container.image
}

default CopyFileRequest = false

default ExecProcessRequest = false

default ReadStreamRequest = true

default WriteStreamRequest = true

default WaitProcessRequest = true

default SignalProcessRequest = true

default StatsContainerRequest = true

default GuestDetailsRequest = true

default RemoveContainerRequest = true

default DestroySandboxRequest = true

default SetPolicyRequest = false

default AllowRequestsFailingPolicy = false
`

// Generator renders policy text from normalized workload resources.
type Generator struct {
	log  *zap.SugaredLogger
	tmpl *template.Template
}

func New(log *zap.SugaredLogger) *Generator {
	return &Generator{
		log:  log,
		tmpl: template.Must(template.New("policy").Parse(policyTemplate)),
	}
}

// GeneratePolicy renders and validates the policy text for one resource.
func (g *Generator) GeneratePolicy(r workload.K8sResource) (string, error) {
	data := policyData{
		Kind:        r.Kind(),
		Namespace:   r.Namespace(),
		SandboxName: r.SandboxName(),
		HostNetwork: r.UseHostNetwork(),
		SharedPID:   r.UseSandboxPIDNS(),
		Annotations: r.Annotations(),
	}

	containers := r.Containers()
	for i := range containers {
		c := &containers[i]
		mounts, storages := r.ContainerMountsAndStorages(c)
		data.Containers = append(data.Containers, containerData{
			Name:     c.Name,
			Image:    c.Image,
			Mounts:   mounts,
			Storages: storages,
		})
	}

	// JSON is a syntactic subset of rego values, so the document can be
	// spliced into the module verbatim.
	encoded, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return "", fmt.Errorf("encoding policy data: %w", err)
	}

	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, map[string]string{"PolicyData": string(encoded)}); err != nil {
		return "", fmt.Errorf("rendering policy: %w", err)
	}
	policy := buf.String()

	if _, err := ast.ParseModule("agent_policy.rego", policy); err != nil {
		return "", fmt.Errorf("generated policy does not parse: %w", err)
	}

	g.log.Debugw("generated policy", "kind", r.Kind(), "containers", len(data.Containers))
	metrics.PoliciesGenerated.WithLabelValues(r.Kind()).Inc()
	return policy, nil
}
