package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/vanderheijden86/edumap/pkg/model"
)

// GraphResult is returned by the generating endpoints.
type GraphResult struct {
	GraphID string         `json:"graph_id"`
	Graph   model.Snapshot `json:"graph"`
}

type graphEnvelope struct {
	Graph model.Snapshot `json:"graph"`
}

// GenerateRequest asks the backend to build or extend a graph from text.
type GenerateRequest struct {
	Message       string          `json:"message"`
	UserID        string          `json:"user_id"`
	Title         string          `json:"title,omitempty"`
	GraphID       string          `json:"graph_id,omitempty"`
	PreviousGraph *model.Snapshot `json:"previous_graph"`
	Context       string          `json:"context,omitempty"`
}

// Analytics is the backend's degree centrality, keyed by node label.
type Analytics struct {
	InDegree  map[string]float64 `json:"in_degree_centrality"`
	OutDegree map[string]float64 `json:"out_degree_centrality"`
}

func esc(s string) string { return url.PathEscape(s) }

// GetGraph fetches the current snapshot of a graph.
func (c *Client) GetGraph(ctx context.Context, graphID string) (model.Snapshot, error) {
	var env graphEnvelope
	err := c.do(ctx, http.MethodGet, "/get_graph/"+esc(graphID), nil, &env)
	return env.Graph, err
}

// Generate creates a graph, or extends PreviousGraph, from free text.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (GraphResult, error) {
	var res GraphResult
	err := c.do(ctx, http.MethodPost, "/generate_graph", req, &res)
	return res, err
}

// Refine applies natural-language feedback to an existing graph.
func (c *Client) Refine(ctx context.Context, graphID, userID, feedback string) (GraphResult, error) {
	body := map[string]string{"feedback": feedback, "graph_id": graphID, "user_id": userID}
	var res GraphResult
	err := c.do(ctx, http.MethodPost, "/refine_graph", body, &res)
	return res, err
}

// ExpandNode grows the graph around a node label.
func (c *Client) ExpandNode(ctx context.Context, graphID, userID, message string, previous *model.Snapshot) (GraphResult, error) {
	req := GenerateRequest{Message: message, UserID: userID, GraphID: graphID, PreviousGraph: previous}
	var res GraphResult
	err := c.do(ctx, http.MethodPost, "/expand_node", req, &res)
	return res, err
}

// AddComment appends a comment and returns the updated graph.
func (c *Client) AddComment(ctx context.Context, graphID, nodeID, text, userID string) (model.Snapshot, error) {
	body := map[string]string{"graph_id": graphID, "node_id": nodeID, "text": text, "user_id": userID}
	var env graphEnvelope
	err := c.do(ctx, http.MethodPost, "/add_comment", body, &env)
	return env.Graph, err
}

// DeleteNode removes a node and returns the updated graph.
func (c *Client) DeleteNode(ctx context.Context, graphID, nodeID, userID string) (model.Snapshot, error) {
	body := map[string]string{"graph_id": graphID, "node_id": nodeID, "user_id": userID}
	var env graphEnvelope
	err := c.do(ctx, http.MethodPost, "/delete_node", body, &env)
	return env.Graph, err
}

// DeleteGraph removes a whole graph.
func (c *Client) DeleteGraph(ctx context.Context, graphID, userID string) error {
	body := map[string]string{"graph_id": graphID, "user_id": userID}
	return c.do(ctx, http.MethodPost, "/delete_graph", body, nil)
}

// UpdateTitle renames a graph.
func (c *Client) UpdateTitle(ctx context.Context, graphID, title, userID string) error {
	body := map[string]string{"graph_id": graphID, "title": title, "user_id": userID}
	return c.do(ctx, http.MethodPost, "/update_graph_title", body, nil)
}

// Analyze asks the backend for degree centrality.
func (c *Client) Analyze(ctx context.Context, graphID string) (Analytics, error) {
	body := map[string]string{"graph_id": graphID, "format": "json"}
	var env struct {
		Analytics Analytics `json:"analytics"`
	}
	err := c.do(ctx, http.MethodPost, "/analyze_graph", body, &env)
	return env.Analytics, err
}

// History lists the graphs visible to userID. An empty userID yields an
// empty list without a request.
func (c *Client) History(ctx context.Context, userID string) ([]model.GraphSummary, error) {
	if userID == "" {
		return nil, nil
	}
	var env struct {
		Graphs []model.GraphSummary `json:"graphs"`
	}
	err := c.do(ctx, http.MethodGet, "/graph_history/"+esc(userID), nil, &env)
	return env.Graphs, err
}

// Versions lists stored revisions of a graph, oldest first.
func (c *Client) Versions(ctx context.Context, graphID string) ([]model.Version, error) {
	var env struct {
		Versions []model.Version `json:"versions"`
	}
	err := c.do(ctx, http.MethodGet, "/graph_versions/"+esc(graphID), nil, &env)
	return env.Versions, err
}

// RestoreVersion rolls a graph back and returns the restored snapshot.
func (c *Client) RestoreVersion(ctx context.Context, versionID string) (model.Snapshot, error) {
	var env graphEnvelope
	err := c.do(ctx, http.MethodPost, "/restore_version/"+esc(versionID), nil, &env)
	return env.Graph, err
}

// CreateUser registers userID, or a fresh id when empty, and returns it.
func (c *Client) CreateUser(ctx context.Context, userID string) (string, error) {
	body := map[string]any{}
	if userID != "" {
		body["user_id"] = userID
	}
	var res struct {
		UserID string `json:"user_id"`
	}
	err := c.do(ctx, http.MethodPost, "/create_user", body, &res)
	return res.UserID, err
}
