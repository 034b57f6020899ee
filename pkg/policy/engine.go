package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/topdown/print"
	"go.uber.org/zap"

	"github.com/telekom/coco-policy/pkg/metrics"
)

const (
	// policyPackage namespaces every endpoint query.
	policyPackage = "agent_policy"

	// allowFailuresRule is the fixed-name rule re-evaluated after every
	// policy load. Its result decides whether evaluation failures are
	// ignored, so the policy author opts into lenient mode declaratively.
	allowFailuresRule = "AllowRequestsFailingPolicy"

	// DefaultEvalLogPath is where eval inputs are logged in debug mode.
	DefaultEvalLogPath = "/tmp/policy.txt"
)

// DefaultSuppressedEndpoints are not written to the eval-input log:
// StatsContainerRequest and ReadStreamRequest are called often enough to blow
// the log up, and SetPolicyRequest would copy whole policy documents into it.
// The policy text can be read from the pod YAML instead.
func DefaultSuppressedEndpoints() []string {
	return []string{"StatsContainerRequest", "ReadStreamRequest", "SetPolicyRequest"}
}

// Config controls engine construction.
type Config struct {
	// Debug enables the eval-input log file.
	Debug bool

	// EvalLogPath overrides DefaultEvalLogPath.
	EvalLogPath string

	// SuppressedEndpoints overrides DefaultSuppressedEndpoints.
	SuppressedEndpoints []string
}

// BindingVerifier checks that a replacement policy matches the measurement
// the VM was launched with. Satisfied by attestation.Verifier.
type BindingVerifier interface {
	Verify(policy string) error
}

// Engine is the process-wide policy evaluator. Exactly one instance exists;
// every evaluation and every policy replacement serializes through its lock,
// so a replacement is observed atomically by subsequent evaluations.
type Engine struct {
	log      *zap.SugaredLogger
	cfg      Config
	verifier BindingVerifier

	mu sync.Mutex

	// allowFailures ignores policy errors when true, for debug purposes.
	// Recomputed from the policy itself after every load.
	allowFailures bool

	logFile *os.File

	compiler *ast.Compiler
	prepared map[string]rego.PreparedEvalQuery
}

// NewEngine creates an uninitialized engine. Call Initialize before use.
func NewEngine(log *zap.SugaredLogger, cfg Config, verifier BindingVerifier) *Engine {
	if cfg.EvalLogPath == "" {
		cfg.EvalLogPath = DefaultEvalLogPath
	}
	if cfg.SuppressedEndpoints == nil {
		cfg.SuppressedEndpoints = DefaultSuppressedEndpoints()
	}
	return &Engine{
		log:      log,
		cfg:      cfg,
		verifier: verifier,
		prepared: map[string]rego.PreparedEvalQuery{},
	}
}

// Initialize loads the default policy file and, in debug mode, opens the
// eval-input log.
func (e *Engine) Initialize(ctx context.Context, defaultPolicyFile string) error {
	data, err := os.ReadFile(defaultPolicyFile)
	if err != nil {
		return fmt.Errorf("reading default policy %s: %w", defaultPolicyFile, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.Debug {
		logFile, err := os.OpenFile(e.cfg.EvalLogPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("opening eval log %s: %w", e.cfg.EvalLogPath, err)
		}
		e.logFile = logFile
		e.log.Debugw("policy: eval log enabled", "path", e.cfg.EvalLogPath)
	}

	compiler, err := compilePolicy(string(data))
	if err != nil {
		return err
	}
	e.compiler = compiler
	e.prepared = map[string]rego.PreparedEvalQuery{}
	e.updateAllowFailuresLocked(ctx)
	return nil
}

// Close releases the eval-input log file handle.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.logFile == nil {
		return nil
	}
	err := e.logFile.Close()
	e.logFile = nil
	return err
}

func compilePolicy(policy string) (*ast.Compiler, error) {
	module, err := ast.ParseModule(policyPackage+".rego", policy)
	if err != nil {
		return nil, fmt.Errorf("parsing policy: %w", err)
	}
	compiler := ast.NewCompiler().WithEnablePrintStatements(true)
	compiler.Compile(map[string]*ast.Module{policyPackage + ".rego": module})
	if compiler.Failed() {
		return nil, fmt.Errorf("compiling policy: %w", compiler.Errors)
	}
	return compiler, nil
}

// printBuffer gathers rego print() output during one evaluation. The prints
// are diagnostics for the caller, never a security signal.
type printBuffer struct {
	lines []string
}

func (b *printBuffer) Print(_ print.Context, msg string) error {
	b.lines = append(b.lines, msg)
	return nil
}

func (b *printBuffer) join() string {
	return strings.Join(b.lines, " ")
}

// allowRequest asks the rule engine whether an API call should be allowed.
// Callers must hold e.mu.
func (e *Engine) allowRequest(ctx context.Context, ep string, input any) (bool, string, error) {
	e.log.Debugw("policy check", "endpoint", ep)
	e.logEvalInput(ep, input)

	allowed, prints, err := e.evalRule(ctx, ep, input)
	if err != nil {
		if !e.allowFailures {
			return false, prints, err
		}
		allowed = false
	}

	if !allowed && e.allowFailures {
		e.log.Warnw("policy: ignoring failed check", "endpoint", ep)
		allowed = true
	}

	return allowed, prints, nil
}

// evalRule runs the boolean query data.agent_policy.<ep> against input. An
// undefined decision is a deny, not an error.
func (e *Engine) evalRule(ctx context.Context, ep string, input any) (bool, string, error) {
	if e.compiler == nil {
		return false, "", fmt.Errorf("policy engine not initialized")
	}

	pq, err := e.preparedQuery(ctx, ep)
	if err != nil {
		return false, "", err
	}

	buf := &printBuffer{}
	rs, err := pq.Eval(ctx, rego.EvalInput(input), rego.EvalPrintHook(buf))
	prints := buf.join()
	if err != nil {
		return false, prints, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, prints, nil
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, prints, fmt.Errorf("policy rule %s.%s is not boolean", policyPackage, ep)
	}
	return allowed, prints, nil
}

func (e *Engine) preparedQuery(ctx context.Context, ep string) (rego.PreparedEvalQuery, error) {
	if pq, ok := e.prepared[ep]; ok {
		return pq, nil
	}
	pq, err := rego.New(
		rego.Query("data."+policyPackage+"."+ep),
		rego.Compiler(e.compiler),
		rego.EnablePrintStatements(true),
	).PrepareForEval(ctx)
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("preparing query for %s: %w", ep, err)
	}
	e.prepared[ep] = pq
	return pq, nil
}

// setPolicyLocked replaces the active rule set. The old state stays in force
// unless every step succeeds.
func (e *Engine) setPolicyLocked(ctx context.Context, policy string) error {
	if err := e.verifier.Verify(policy); err != nil {
		metrics.AttestationFailures.Inc()
		return err
	}
	compiler, err := compilePolicy(policy)
	if err != nil {
		return err
	}
	e.compiler = compiler
	e.prepared = map[string]rego.PreparedEvalQuery{}
	e.updateAllowFailuresLocked(ctx)
	metrics.PolicySwaps.Inc()
	return nil
}

// updateAllowFailuresLocked re-derives the fail-open flag from the freshly
// loaded rules. An engine failure during this specific check leaves fail-open
// disabled.
func (e *Engine) updateAllowFailuresLocked(ctx context.Context) {
	allowed, _, err := e.evalRule(ctx, allowFailuresRule, map[string]any{})
	if err != nil {
		e.allowFailures = false
		return
	}
	if allowed {
		e.log.Warnw("policy: " + allowFailuresRule + " is enabled - errors will be ignored")
	}
	e.allowFailures = allowed
}

// logEvalInput appends one bracketed record per evaluation to the eval log,
// skipping the suppressed endpoints. IO failures are warnings, never part of
// the decision.
func (e *Engine) logEvalInput(ep string, input any) {
	if e.logFile == nil {
		return
	}
	if slices.Contains(e.cfg.SuppressedEndpoints, ep) {
		return
	}

	data, err := json.Marshal(input)
	if err != nil {
		e.log.Warnw("policy: eval input not serializable", "endpoint", ep, "error", err)
		return
	}
	entry := fmt.Sprintf("[\"ep\":%q,%s],\n\n", ep, data)
	if _, err := e.logFile.WriteString(entry); err != nil {
		e.log.Warnw("policy: eval log write failed", "error", err)
	} else if err := e.logFile.Sync(); err != nil {
		e.log.Warnw("policy: eval log flush failed", "error", err)
	}
}
