package terminal

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/devdeck/pkg/models"
)

// LogSource tags console log entries written by the execute path.
const LogSource = "terminal"

// SessionStore persists terminal sessions.
type SessionStore interface {
	HistoryStore
	CreateSession(ctx context.Context, projectID, name string) (*models.TerminalSession, error)
	ListSessions(ctx context.Context, projectID string) ([]*models.TerminalSession, error)
	CountSessions(ctx context.Context, projectID string) (int64, error)
	RenameSession(ctx context.Context, id, name string) (*models.TerminalSession, error)
	DeleteSession(ctx context.Context, id string) (bool, error)
}

// ProjectResolver picks the project a request works on.
type ProjectResolver interface {
	ResolveProject(ctx context.Context, id string) (*models.Project, error)
}

// LogWriter stores console log entries.
type LogWriter interface {
	CreateLog(ctx context.Context, entry *models.ConsoleLog) (*models.ConsoleLog, error)
}

// CommandRunner executes a shell command.
type CommandRunner interface {
	Run(ctx context.Context, command string) (models.ExecutionRecord, error)
}

// Broadcaster fans events out to connected clients.
type Broadcaster interface {
	Broadcast(event models.Event) int
}

// Service orchestrates terminal sessions: run, record, log and notify.
type Service struct {
	sessions SessionStore
	projects ProjectResolver
	logs     LogWriter
	runner   CommandRunner
	events   Broadcaster
	appender *Appender

	// createMu serializes lazy and numbered session creation.
	createMu sync.Mutex
}

// NewService wires a terminal service.
func NewService(sessions SessionStore, projects ProjectResolver, logs LogWriter, runner CommandRunner, events Broadcaster) *Service {
	return &Service{
		sessions: sessions,
		projects: projects,
		logs:     logs,
		runner:   runner,
		events:   events,
		appender: NewAppender(sessions),
	}
}

// Execute runs command in the session and returns the session with the new
// record appended. A failing command is reported in the record, not as an error.
func (s *Service) Execute(ctx context.Context, sessionID, command string) (*models.TerminalSession, error) {
	if command == "" {
		return nil, fmt.Errorf("%w: command is required", models.ErrValidation)
	}
	if _, err := s.sessions.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rec, err := s.runner.Run(ctx, command)
	if err != nil {
		return nil, err
	}

	// The command already ran; keep its record even if the caller went away.
	persistCtx := context.WithoutCancel(ctx)
	session, err := s.appender.Append(persistCtx, sessionID, rec)
	if err != nil {
		return nil, fmt.Errorf("record execution: %w", err)
	}

	s.recordLog(persistCtx, session.ProjectID, rec)
	s.events.Broadcast(models.TerminalOutput(session))

	log.Info().
		Str("sessionId", sessionID).
		Int("exitCode", rec.ExitCode).
		Int("historyLen", len(session.History)).
		Msg("Command executed")

	return session, nil
}

func (s *Service) recordLog(ctx context.Context, projectID string, rec models.ExecutionRecord) {
	level := models.LogLevelSuccess
	if !rec.Succeeded() {
		level = models.LogLevelError
	}
	entry, err := s.logs.CreateLog(ctx, &models.ConsoleLog{
		ProjectID: projectID,
		Level:     level,
		Source:    LogSource,
		Message:   fmt.Sprintf("$ %s (exit %d)", rec.Command, rec.ExitCode),
	})
	if err != nil {
		log.Warn().Err(err).Str("projectId", projectID).Msg("Failed to write console log")
		return
	}
	s.events.Broadcast(models.LogCreated(entry))
}

// List returns the sessions of the current project, creating "Terminal 1"
// when the project has none.
func (s *Service) List(ctx context.Context, projectID string) ([]*models.TerminalSession, error) {
	s.createMu.Lock()
	defer s.createMu.Unlock()

	project, err := s.projects.ResolveProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	sessions, err := s.sessions.ListSessions(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	if len(sessions) > 0 {
		return sessions, nil
	}

	session, err := s.sessions.CreateSession(ctx, project.ID, sessionName(1))
	if err != nil {
		return nil, err
	}
	s.events.Broadcast(models.TerminalUpdated(session))
	return []*models.TerminalSession{session}, nil
}

// Create adds a session to the current project. An empty name becomes
// "Terminal N" where N is one more than the number of existing sessions.
func (s *Service) Create(ctx context.Context, projectID, name string) (*models.TerminalSession, error) {
	s.createMu.Lock()
	defer s.createMu.Unlock()

	project, err := s.projects.ResolveProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		count, err := s.sessions.CountSessions(ctx, project.ID)
		if err != nil {
			return nil, fmt.Errorf("count sessions: %w", err)
		}
		name = sessionName(count + 1)
	}

	session, err := s.sessions.CreateSession(ctx, project.ID, name)
	if err != nil {
		return nil, err
	}
	s.events.Broadcast(models.TerminalUpdated(session))
	return session, nil
}

// Get returns one session.
func (s *Service) Get(ctx context.Context, id string) (*models.TerminalSession, error) {
	return s.sessions.GetSession(ctx, id)
}

// Rename changes the display name of a session.
func (s *Service) Rename(ctx context.Context, id, name string) (*models.TerminalSession, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", models.ErrValidation)
	}
	session, err := s.sessions.RenameSession(ctx, id, name)
	if err != nil {
		return nil, err
	}
	s.events.Broadcast(models.TerminalUpdated(session))
	return session, nil
}

// ClearHistory empties the history of a session.
func (s *Service) ClearHistory(ctx context.Context, id string) (*models.TerminalSession, error) {
	session, err := s.appender.Clear(ctx, id)
	if err != nil {
		return nil, err
	}
	s.events.Broadcast(models.TerminalUpdated(session))
	return session, nil
}

// Delete removes a session. Deleting an unknown id succeeds and notifies
// clients the same way.
func (s *Service) Delete(ctx context.Context, id string) error {
	existed, err := s.sessions.DeleteSession(ctx, id)
	if err != nil {
		return err
	}
	log.Debug().Str("sessionId", id).Bool("existed", existed).Msg("Terminal session deleted")
	s.events.Broadcast(models.TerminalDeleted(id))
	return nil
}

func sessionName(n int64) string {
	return fmt.Sprintf("Terminal %d", n)
}
