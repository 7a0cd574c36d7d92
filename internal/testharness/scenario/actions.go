package scenario

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ratchet-hid/ratchet-go/pkg/batch"
	"github.com/ratchet-hid/ratchet-go/pkg/model"
)

func registerBuiltinActions(r *Runner) {
	r.RegisterHandler("apply", applyAction)
	r.RegisterHandler("commit", commitAction)
	r.RegisterHandler("resync", resyncAction)
	r.RegisterHandler("read", readAction)
	r.RegisterHandler("set_active_profile", setActiveProfileAction)
	r.RegisterHandler("set_default_profile", setDefaultProfileAction)
	r.RegisterHandler("fail_writes", failWritesAction)
	r.RegisterHandler("fail_reads", failReadsAction)
	r.RegisterHandler("disconnect", disconnectAction)
}

// applyAction stages an inline batch document; the step params mapping
// is the document itself.
func applyAction(ctx context.Context, st *State, step *Step) (map[string]any, error) {
	data, err := yaml.Marshal(step.Params)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	doc, err := batch.Parse(data)
	if err != nil {
		return nil, err
	}
	if err := batch.Apply(st.Dev, doc, nil); err != nil {
		return nil, err
	}
	return map[string]any{"status": "staged"}, nil
}

// commitAction commits the staged state and waits for the transaction.
func commitAction(ctx context.Context, st *State, step *Step) (map[string]any, error) {
	tx, err := st.Dev.Commit(ctx)
	if err != nil {
		return map[string]any{"status": "rejected", "reason": err.Error()}, nil
	}

	select {
	case <-tx.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	status := "failed"
	if tx.Succeeded() {
		status = "complete"
	}
	return map[string]any{"status": status, "seq": tx.Seq()}, nil
}

func resyncAction(ctx context.Context, st *State, step *Step) (map[string]any, error) {
	if err := st.Dev.Resync(ctx); err != nil {
		return map[string]any{"status": "rejected", "reason": err.Error()}, nil
	}
	return map[string]any{"status": "complete"}, nil
}

// readAction snapshots one profile's observable state. With a
// resolution or button param it additionally reports that slot.
func readAction(ctx context.Context, st *State, step *Step) (map[string]any, error) {
	index, err := intParam(step.Params, "profile", 0)
	if err != nil {
		return nil, err
	}
	p, err := st.Dev.Profile(index)
	if err != nil {
		return nil, err
	}

	outputs := map[string]any{
		"report_rate": p.ReportRate(),
		"enabled":     p.Enabled(),
		"active":      p.Active(),
		"default":     p.Default(),
		"dirty":       st.Dev.Dirty(),
	}

	if hasParam(step.Params, "resolution") {
		idx, err := intParam(step.Params, "resolution", 0)
		if err != nil {
			return nil, err
		}
		res, err := p.Resolution(idx)
		if err != nil {
			return nil, err
		}
		outputs["dpi"] = res.DPI().String()
	}

	if hasParam(step.Params, "button") {
		idx, err := intParam(step.Params, "button", 0)
		if err != nil {
			return nil, err
		}
		btn, err := p.Button(idx)
		if err != nil {
			return nil, err
		}
		outputs["action"] = btn.Action().String()
	}
	return outputs, nil
}

func setActiveProfileAction(ctx context.Context, st *State, step *Step) (map[string]any, error) {
	p, err := profileParam(st, step)
	if err != nil {
		return nil, err
	}
	if err := p.SetActive(); err != nil {
		return map[string]any{"status": "rejected", "reason": err.Error()}, nil
	}
	return map[string]any{"status": "staged"}, nil
}

func setDefaultProfileAction(ctx context.Context, st *State, step *Step) (map[string]any, error) {
	p, err := profileParam(st, step)
	if err != nil {
		return nil, err
	}
	if err := p.SetDefault(); err != nil {
		return map[string]any{"status": "rejected", "reason": err.Error()}, nil
	}
	return map[string]any{"status": "staged"}, nil
}

func failWritesAction(ctx context.Context, st *State, step *Step) (map[string]any, error) {
	count, err := intParam(step.Params, "count", 1)
	if err != nil {
		return nil, err
	}
	st.HW.FailNextWrites(count)
	return nil, nil
}

func failReadsAction(ctx context.Context, st *State, step *Step) (map[string]any, error) {
	count, err := intParam(step.Params, "count", 1)
	if err != nil {
		return nil, err
	}
	st.HW.FailNextReads(count)
	return nil, nil
}

// disconnectAction unplugs the emulated hardware; the model notices on
// the next commit.
func disconnectAction(ctx context.Context, st *State, step *Step) (map[string]any, error) {
	st.HW.Disconnect()
	return nil, nil
}

func profileParam(st *State, step *Step) (*model.Profile, error) {
	index, err := intParam(step.Params, "profile", 0)
	if err != nil {
		return nil, err
	}
	return st.Dev.Profile(index)
}

// intParam reads an integer step parameter, falling back when absent.
func intParam(params map[string]any, key string, fallback int) (int, error) {
	v, ok := params[key]
	if !ok {
		return fallback, nil
	}
	n, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("param %q: want an integer, got %T", key, v)
	}
	return n, nil
}

func hasParam(params map[string]any, key string) bool {
	_, ok := params[key]
	return ok
}
