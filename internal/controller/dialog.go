package controller

import (
	"context"
	"fmt"

	"flowchart/internal/domain"
	"flowchart/internal/planner"

	"go.uber.org/zap"
)

// DialogState is the state of the append dialog
type DialogState int

const (
	DialogClosed DialogState = iota
	DialogOpen
	DialogSubmitting
)

func (s DialogState) String() string {
	switch s {
	case DialogClosed:
		return "closed"
	case DialogOpen:
		return "open"
	case DialogSubmitting:
		return "submitting"
	}
	return fmt.Sprintf("DialogState(%d)", int(s))
}

// Form holds the append dialog fields
type Form struct {
	Label     string
	Kind      domain.NodeKind
	EdgeLabel string
	SourceID  string
	Mode      domain.PositionMode
}

// DefaultForm returns the fields of a freshly reset dialog
func DefaultForm() Form {
	return Form{
		Label:     "New Step",
		Kind:      domain.NodeKindDefault,
		EdgeLabel: "next",
		Mode:      domain.PositionEnd,
	}
}

// request turns the form into an append request. The source field is
// ignored in start mode.
func (f Form) request(flowchartID string) domain.AppendRequest {
	req := domain.AppendRequest{
		FlowchartID:      flowchartID,
		Label:            f.Label,
		Kind:             f.Kind,
		EdgeLabel:        f.EdgeLabel,
		Mode:             f.Mode,
		ExplicitSourceID: f.SourceID,
	}
	if f.Mode == domain.PositionStart {
		req.ExplicitSourceID = ""
	}
	return req
}

type dialog struct {
	state       DialogState
	flowchartID string
	form        Form
}

func newDialog() dialog {
	return dialog{state: DialogClosed, form: DefaultForm()}
}

// SourceOption is one entry of the source node picker
type SourceOption struct {
	ID    string
	Label string
}

// OpenDialog opens the append dialog for a flowchart. The source and mode
// fields are reset; the other fields keep their values.
func (c *Controller) OpenDialog(flowchartID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dialog.state == DialogSubmitting {
		return fmt.Errorf("%w: submit in progress", ErrDialogState)
	}
	if _, ok := c.snapshot.Graph(flowchartID); !ok {
		return fmt.Errorf("%w: %s", ErrNoFlowchart, flowchartID)
	}

	c.dialog.state = DialogOpen
	c.dialog.flowchartID = flowchartID
	c.dialog.form.SourceID = ""
	c.dialog.form.Mode = domain.PositionEnd
	return nil
}

// CloseDialog closes the dialog and resets every field
func (c *Controller) CloseDialog() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dialog.state == DialogSubmitting {
		return fmt.Errorf("%w: submit in progress", ErrDialogState)
	}
	c.dialog = newDialog()
	return nil
}

// Dialog returns the dialog state and the flowchart it targets
func (c *Controller) Dialog() (DialogState, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialog.state, c.dialog.flowchartID
}

// Form returns the current dialog fields
func (c *Controller) Form() Form {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialog.form
}

// SetForm replaces the dialog fields while the dialog is open
func (c *Controller) SetForm(f Form) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dialog.state != DialogOpen {
		return fmt.Errorf("%w: dialog is %s", ErrDialogState, c.dialog.state)
	}
	c.dialog.form = f
	return nil
}

// SourceOptions lists the nodes of the dialog's flowchart, labeled by
// their label or id
func (c *Controller) SourceOptions() []SourceOption {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.snapshot.Graph(c.dialog.flowchartID)
	if c.dialog.state == DialogClosed || !ok {
		return nil
	}

	nodes := g.Nodes()
	opts := make([]SourceOption, 0, len(nodes))
	for _, n := range nodes {
		opts = append(opts, SourceOption{ID: n.ID, Label: n.DisplayName()})
	}
	return opts
}

// Submit plans the append against the current snapshot, sends it and
// refetches the list. The dialog closes only after the refetch. On failure
// the dialog returns to open with its fields intact.
func (c *Controller) Submit(ctx context.Context) (*planner.Plan, error) {
	c.mu.Lock()
	if c.dialog.state != DialogOpen {
		state := c.dialog.state
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: dialog is %s", ErrDialogState, state)
	}
	flowchartID := c.dialog.flowchartID
	g, ok := c.snapshot.Graph(flowchartID)
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNoFlowchart, flowchartID)
	}
	req := c.dialog.form.request(flowchartID)
	c.dialog.state = DialogSubmitting
	c.mu.Unlock()

	plan, err := c.planner.Plan(g, req)
	if err != nil {
		c.reopen()
		return nil, fmt.Errorf("plan append: %w", err)
	}

	for _, e := range plan.Dangling(g) {
		c.logger.Warn("Appended edge references a missing node",
			zap.String("flowchart_id", flowchartID),
			zap.String("edge_id", e.ID),
			zap.String("source", e.Source),
			zap.String("target", e.Target),
		)
	}

	if err := c.store.Append(ctx, plan.Payload(flowchartID)); err != nil {
		c.logger.Error("Error appending to flowchart",
			zap.String("flowchart_id", flowchartID),
			zap.String("node_id", plan.Node.ID),
			zap.Error(err),
		)
		c.reopen()
		return nil, fmt.Errorf("append: %w", err)
	}

	// The append is stored; a failed refetch only affects the list state
	_ = c.Refresh(ctx)

	c.mu.Lock()
	c.dialog = newDialog()
	c.mu.Unlock()

	return plan, nil
}

func (c *Controller) reopen() {
	c.mu.Lock()
	c.dialog.state = DialogOpen
	c.mu.Unlock()
}
