package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vanderheijden86/edumap/pkg/analysis"
	"github.com/vanderheijden86/edumap/pkg/api"
	"github.com/vanderheijden86/edumap/pkg/graph"
	"github.com/vanderheijden86/edumap/pkg/model"
)

// maxTitleRunes bounds the title derived from the text of a new graph.
const maxTitleRunes = 100

// ExpandPrefix starts the message sent when expanding a node.
const ExpandPrefix = "Expandir: "

func titleFrom(text string) string {
	r := []rune(strings.TrimSpace(text))
	if len(r) > maxTitleRunes {
		r = r[:maxTitleRunes]
	}
	return string(r)
}

// mutate runs fn against the open graph and replaces the store with the
// snapshot it returns. A result for a graph the user has since left is
// discarded without error.
func (s *Session) mutate(ctx context.Context, what string, fn func(ctx context.Context, graphID string) (model.Snapshot, error)) error {
	graphID, gen := s.current()
	if graphID == "" {
		s.fail("Selecciona un grafo primero", ErrNoGraph)
		return ErrNoGraph
	}
	snap, err := fn(ctx, graphID)
	if err != nil {
		s.fail(what, err)
		return err
	}
	s.apply(gen, snap, graph.SourceMutation, false)
	return nil
}

func (s *Session) requireUser() error {
	if s.cfg.UserID == "" {
		s.fail("Usuario no inicializado", ErrNoUser)
		return ErrNoUser
	}
	return nil
}

func (s *Session) requireText(text, msg string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		s.fail(msg, ErrEmptyText)
		return "", ErrEmptyText
	}
	return text, nil
}

// Create generates a new graph from text and opens it.
func (s *Session) Create(ctx context.Context, text string) (string, error) {
	text, err := s.requireText(text, "Por favor, introduce algún texto")
	if err != nil {
		return "", err
	}
	if err := s.requireUser(); err != nil {
		return "", err
	}
	title := titleFrom(text)
	res, err := s.cfg.Backend.Generate(ctx, api.GenerateRequest{Message: text, UserID: s.cfg.UserID, Title: title})
	if err != nil {
		s.fail("Ocurrió un error", err)
		return "", err
	}

	s.stopTour()
	gen, err := s.begin(res.GraphID, title)
	if err != nil {
		return "", err
	}
	s.apply(gen, res.Graph, graph.SourceMutation, false)
	if s.sync != nil {
		if err := s.sync.Switch(ctx, res.GraphID); err != nil {
			s.logger.Warn("live sync unavailable", zap.String("graph_id", res.GraphID), zap.Error(err))
		}
	}
	return res.GraphID, nil
}

// AddContent extends the open graph with more text.
func (s *Session) AddContent(ctx context.Context, text string) error {
	text, err := s.requireText(text, "Por favor, introduce algún texto")
	if err != nil {
		return err
	}
	if err := s.requireUser(); err != nil {
		return err
	}
	title := s.Title()
	return s.mutate(ctx, "Ocurrió un error", func(ctx context.Context, graphID string) (model.Snapshot, error) {
		prev := s.store.Snapshot()
		req := api.GenerateRequest{Message: text, UserID: s.cfg.UserID, Title: title, GraphID: graphID}
		if !prev.IsEmpty() {
			req.PreviousGraph = &prev
		}
		res, err := s.cfg.Backend.Generate(ctx, req)
		return res.Graph, err
	})
}

// Refine applies feedback to the open graph.
func (s *Session) Refine(ctx context.Context, feedback string) error {
	feedback, err := s.requireText(feedback, "Por favor, introduce algún texto")
	if err != nil {
		return err
	}
	if err := s.requireUser(); err != nil {
		return err
	}
	return s.mutate(ctx, "Ocurrió un error", func(ctx context.Context, graphID string) (model.Snapshot, error) {
		res, err := s.cfg.Backend.Refine(ctx, graphID, s.cfg.UserID, feedback)
		return res.Graph, err
	})
}

// Expand asks the backend to grow the graph around nodeID. The detail view
// is closed first.
func (s *Session) Expand(ctx context.Context, nodeID string) error {
	if err := s.requireUser(); err != nil {
		return err
	}
	n, ok := s.store.FindNode(nodeID)
	if !ok {
		s.fail("Selecciona un grafo para enfocar", graph.ErrNodeNotFound)
		return graph.ErrNodeNotFound
	}
	s.CloseDetail()
	return s.mutate(ctx, "Ocurrió un error", func(ctx context.Context, graphID string) (model.Snapshot, error) {
		prev := s.store.Snapshot()
		res, err := s.cfg.Backend.ExpandNode(ctx, graphID, s.cfg.UserID, ExpandPrefix+n.Label, &prev)
		return res.Graph, err
	})
}

// Comment appends a comment to nodeID. It shows up at once as a pending
// comment; the backend's snapshot then confirms it, and a failed request
// retracts it.
func (s *Session) Comment(ctx context.Context, nodeID, text string) error {
	text, err := s.requireText(text, "El comentario no puede estar vacío")
	if err != nil {
		return err
	}
	if err := s.requireUser(); err != nil {
		return err
	}
	graphID, gen := s.current()
	if graphID == "" {
		s.fail("Selecciona un grafo primero", ErrNoGraph)
		return ErrNoGraph
	}

	c := model.Comment{
		AuthorID:  s.cfg.UserID,
		Text:      text,
		Timestamp: s.cfg.Now().UTC().Format(time.RFC3339),
	}
	localID, err := s.store.AppendComment(nodeID, c)
	if err != nil {
		s.fail("No se pudo añadir el comentario", err)
		return err
	}
	s.refreshDetail()

	snap, err := s.cfg.Backend.AddComment(ctx, graphID, nodeID, text, s.cfg.UserID)
	if err != nil {
		s.store.DiscardPending(localID)
		s.refreshDetail()
		s.fail("No se pudo añadir el comentario", err)
		return err
	}
	s.apply(gen, snap, graph.SourceMutation, false)
	return nil
}

func (s *Session) refreshDetail() {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	s.reconcileDetail()
}

// DeleteNode removes nodeID from the open graph.
func (s *Session) DeleteNode(ctx context.Context, nodeID string) error {
	if err := s.requireUser(); err != nil {
		return err
	}
	return s.mutate(ctx, "No se pudo eliminar el nodo", func(ctx context.Context, graphID string) (model.Snapshot, error) {
		return s.cfg.Backend.DeleteNode(ctx, graphID, nodeID, s.cfg.UserID)
	})
}

// Versions lists the stored revisions of the open graph.
func (s *Session) Versions(ctx context.Context) ([]model.Version, error) {
	graphID, _ := s.current()
	if graphID == "" {
		return nil, ErrNoGraph
	}
	vs, err := s.cfg.Backend.Versions(ctx, graphID)
	if err != nil {
		s.fail("Error cargando versiones", err)
		return nil, err
	}
	return vs, nil
}

// RestoreVersion makes a stored revision the current graph.
func (s *Session) RestoreVersion(ctx context.Context, versionID string) error {
	return s.mutate(ctx, "No se pudo restaurar la versión", func(ctx context.Context, _ string) (model.Snapshot, error) {
		return s.cfg.Backend.RestoreVersion(ctx, versionID)
	})
}

// Analyze returns degree centrality for the open graph. When the backend
// cannot be reached it is computed locally from the current snapshot.
func (s *Session) Analyze(ctx context.Context) (api.Analytics, error) {
	graphID, _ := s.current()
	if graphID == "" {
		return api.Analytics{}, ErrNoGraph
	}
	res, err := s.cfg.Backend.Analyze(ctx, graphID)
	if err == nil {
		return res, nil
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) || errors.Is(err, context.Canceled) {
		s.fail("Error al analizar el grafo", err)
		return api.Analytics{}, err
	}
	s.logger.Info("backend analysis unavailable, computing locally", zap.Error(err))
	stats := analysis.NewAnalyzer(s.store.Snapshot()).Analyze()
	return api.Analytics{InDegree: stats.InDegree, OutDegree: stats.OutDegree}, nil
}
