package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"flowchart/internal/codec"
	"flowchart/internal/controller"
	"flowchart/internal/domain"
	"flowchart/internal/render"
	"flowchart/internal/session"
)

const (
	noFlowchartsMessage = "No flowcharts available."
	emptyGraphMessage   = "No nodes/edges to display."
)

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "login")
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Account password (default: $FLOWCHART_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *password == "" {
		*password = os.Getenv("FLOWCHART_PASSWORD")
	}
	if *email == "" || *password == "" {
		return usageError{"-email and -password are required"}
	}

	token, err := a.client().Login(ctx, *email, *password)
	if err != nil {
		return err
	}

	if err := a.session.Save(&session.Session{
		Email:    *email,
		Token:    token,
		StoreURL: a.cfg.Store.URL,
		IssuedAt: time.Now(),
	}); err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Logged in as %s\n", *email)
	return nil
}

func runLogout(ctx context.Context, a *app, args []string) error {
	if err := newFlagSet(a, "logout").Parse(args); err != nil {
		return err
	}
	if err := a.session.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Logged out")
	return nil
}

func runList(ctx context.Context, a *app, args []string) error {
	if err := newFlagSet(a, "list").Parse(args); err != nil {
		return err
	}

	ctrl, err := a.load(ctx)
	if err != nil {
		return err
	}

	views := ctrl.Views()
	if len(views) == 0 {
		fmt.Fprintln(a.stdout, noFlowchartsMessage)
		return nil
	}

	for i, v := range views {
		if i > 0 {
			fmt.Fprintln(a.stdout)
		}
		fmt.Fprintf(a.stdout, "%s [%s]\n", v.Title, v.FlowchartID)
		fmt.Fprintf(a.stdout, "  %s\n", v.Description)
		if v.Empty() {
			fmt.Fprintf(a.stdout, "  %s\n", emptyGraphMessage)
			continue
		}
		fmt.Fprintf(a.stdout, "  %d nodes, %d edges\n", len(v.Nodes), len(v.Edges))
		for _, n := range v.Nodes {
			fmt.Fprintf(a.stdout, "    %-8s %-24s (%g, %g)\n", n.ID, n.Label, n.Position.X, n.Position.Y)
		}
		if g, ok := ctrl.Snapshot().Graph(v.FlowchartID); ok {
			for _, e := range g.DanglingEdges() {
				fmt.Fprintf(a.stdout, "  dangling edge %s -> %s\n", e.Source, e.Target)
			}
		}
	}
	return nil
}

func runShow(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "show")
	format := fs.String("format", "mermaid", "Output format: mermaid, json or yaml")
	flowchartID := fs.String("flowchart", "", "Only show this flowchart")
	if err := fs.Parse(args); err != nil {
		return err
	}

	exporter, err := codec.ExporterFor(*format)
	if err != nil {
		return usageError{err.Error()}
	}

	ctrl, err := a.load(ctx)
	if err != nil {
		return err
	}

	var views []*render.DisplayGraph
	if *flowchartID != "" {
		v, err := ctrl.View(*flowchartID)
		if err != nil {
			return err
		}
		views = []*render.DisplayGraph{v}
	} else {
		views = ctrl.Views()
	}

	if len(views) == 0 && exporter.Format() == "mermaid" {
		fmt.Fprintln(a.stdout, noFlowchartsMessage)
		return nil
	}
	return exporter.Export(views, a.stdout)
}

func runSources(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "sources")
	flowchartID := fs.String("flowchart", "", "Flowchart id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *flowchartID == "" {
		return usageError{"-flowchart is required"}
	}

	ctrl, err := a.load(ctx)
	if err != nil {
		return err
	}
	if err := ctrl.OpenDialog(*flowchartID); err != nil {
		return err
	}

	opts := ctrl.SourceOptions()
	if len(opts) == 0 {
		fmt.Fprintln(a.stdout, emptyGraphMessage)
		return nil
	}
	for _, o := range opts {
		fmt.Fprintf(a.stdout, "%-8s %s\n", o.ID, o.Label)
	}
	return nil
}

func runAppend(ctx context.Context, a *app, args []string) error {
	defaults := controller.DefaultForm()

	fs := newFlagSet(a, "append")
	flowchartID := fs.String("flowchart", "", "Flowchart id")
	label := fs.String("label", defaults.Label, "Node label")
	kind := fs.String("type", string(defaults.Kind), "Node type: default, start, approval or end")
	edgeLabel := fs.String("edge-label", defaults.EdgeLabel, "Label of the new edge")
	source := fs.String("source", "", "Node the new step follows (default: the last node)")
	mode := fs.String("mode", string(defaults.Mode), "Where to attach: start, end or both")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *flowchartID == "" {
		return usageError{"-flowchart is required"}
	}

	ctrl, err := a.load(ctx)
	if err != nil {
		return err
	}
	if err := ctrl.OpenDialog(*flowchartID); err != nil {
		return err
	}

	form := ctrl.Form()
	form.Label = *label
	form.Kind = domain.NodeKind(*kind)
	form.EdgeLabel = *edgeLabel
	form.SourceID = *source
	form.Mode = domain.PositionMode(*mode)
	if err := ctrl.SetForm(form); err != nil {
		return err
	}

	plan, err := ctrl.Submit(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Appended %s %q to %s at (%g, %g)\n",
		plan.Node.ID, plan.Node.Label, *flowchartID, plan.Node.Position.X, plan.Node.Position.Y)
	for _, e := range plan.Edges {
		fmt.Fprintf(a.stdout, "  edge %s -> %s %q\n", e.Source, e.Target, e.Label)
	}

	if g, ok := ctrl.Snapshot().Graph(*flowchartID); ok {
		for _, e := range plan.Dangling(g) {
			fmt.Fprintf(a.stderr, "warning: edge %s -> %s points at a missing node\n", e.Source, e.Target)
		}
	}

	if state, _ := ctrl.State(); state == controller.ListError {
		fmt.Fprintln(a.stderr, "warning: the list could not be reloaded after the append")
	}
	return nil
}

func runMove(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "move")
	flowchartID := fs.String("flowchart", "", "Flowchart id")
	nodeID := fs.String("node", "", "Node id")
	x := fs.Float64("x", 0, "New x coordinate")
	y := fs.Float64("y", 0, "New y coordinate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var missing []string
	if *flowchartID == "" {
		missing = append(missing, "-flowchart")
	}
	if *nodeID == "" {
		missing = append(missing, "-node")
	}
	if len(missing) > 0 {
		return usageError{strings.Join(missing, " and ") + " required"}
	}

	ctrl, err := a.load(ctx)
	if err != nil {
		return err
	}

	pos := domain.Position{X: *x, Y: *y}
	if err := <-ctrl.DragStopped(ctx, *flowchartID, *nodeID, pos); err != nil {
		if errors.Is(err, controller.ErrNoFlowchart) {
			return err
		}
		return fmt.Errorf("move %s: %w", *nodeID, err)
	}

	fmt.Fprintf(a.stdout, "Moved %s to (%g, %g)\n", *nodeID, pos.X, pos.Y)
	return nil
}

// runConnect mirrors drawing an edge on the canvas: the edge is added to
// the rendered view only and never sent to the store
func runConnect(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "connect")
	flowchartID := fs.String("flowchart", "", "Flowchart id")
	source := fs.String("source", "", "Source node id")
	target := fs.String("target", "", "Target node id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *flowchartID == "" || *source == "" || *target == "" {
		return usageError{"-flowchart, -source and -target are required"}
	}

	ctrl, err := a.load(ctx)
	if err != nil {
		return err
	}
	g, ok := ctrl.Snapshot().Graph(*flowchartID)
	if !ok {
		return fmt.Errorf("%w: %s", controller.ErrNoFlowchart, *flowchartID)
	}
	for _, id := range []string{*source, *target} {
		if !g.HasNode(id) {
			return fmt.Errorf("unknown node %q, have: %s", id, strings.Join(g.NodeIDs(), ", "))
		}
	}

	view, err := ctrl.View(*flowchartID)
	if err != nil {
		return err
	}
	if !view.Connect(*source, *target) {
		fmt.Fprintf(a.stderr, "edge %s -> %s already exists\n", *source, *target)
	}
	fmt.Fprint(a.stdout, view.Mermaid())
	return nil
}

func runCreate(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "create")
	id := fs.String("id", "", "Flowchart id")
	title := fs.String("title", "", "Title")
	description := fs.String("description", "", "Description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return usageError{"-id is required"}
	}

	f := domain.Flowchart{ID: *id, Title: *title, Description: *description}
	if err := a.client().SaveFlowchart(ctx, f); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Saved %s [%s]\n", f.DisplayTitle(), f.ID)
	return nil
}

func runDelete(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "delete")
	flowchartID := fs.String("flowchart", "", "Flowchart id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *flowchartID == "" {
		return usageError{"-flowchart is required"}
	}

	if err := a.client().DeleteFlowchart(ctx, *flowchartID); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Deleted %s\n", *flowchartID)
	return nil
}
