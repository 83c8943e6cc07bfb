package main

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"rehearse/audio"
	"rehearse/gemini"
	"rehearse/history"
	"rehearse/interview"
	"rehearse/log"
	"rehearse/report"
	"rehearse/session"
)

// appDeps are the long-lived dependencies the TUI screens share. Everything
// here outlives individual sessions; the orchestrator itself is per-session.
type appDeps struct {
	audioCtx audio.Context
	device   *audio.DeviceInfo
	client   *gemini.Client
	store    history.Store
	mode     session.Mode
	resume   string
	job      string
}

type sessionStartedMsg struct {
	orch *session.Orchestrator
}

type sessionFailedMsg struct{ err error }

type sessionUpdateMsg struct{ update session.Update }

type reportMsg struct {
	report *report.Feedback
	err    error
}

type turnErrMsg struct{ err error }

// startSession builds and starts one orchestrator for the chosen category.
func startSession(deps *appDeps, category interview.Category) tea.Cmd {
	return func() tea.Msg {
		cfg := interview.Config{
			Resume:         deps.resume,
			JobDescription: deps.job,
			Category:       category,
		}
		orch, err := session.New(session.Config{
			Mode:      deps.mode,
			Interview: cfg,
			Audio:     deps.audioCtx,
			Device:    deps.device,
			Backend:   session.GeminiBackend{Client: deps.client},
			Chat:      session.GeminiChat{Client: deps.client},
			Reporter:  report.NewGenerator(deps.client),
		})
		if err != nil {
			return sessionFailedMsg{err: err}
		}

		dialCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := orch.Start(dialCtx); err != nil {
			return sessionFailedMsg{err: err}
		}
		return sessionStartedMsg{orch: orch}
	}
}

// waitForUpdate blocks on the orchestrator's update stream; the model
// re-issues it after handling each message.
func waitForUpdate(orch *session.Orchestrator) tea.Cmd {
	return func() tea.Msg {
		return sessionUpdateMsg{update: <-orch.Updates()}
	}
}

// endSession finishes the interview, archives it, and carries the report to
// the feedback screen. A failed archive is logged, not fatal; the report is
// still shown.
func endSession(deps *appDeps, orch *session.Orchestrator, category interview.Category) tea.Cmd {
	return func() tea.Msg {
		genCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		fb, err := orch.End(genCtx)

		messages := orch.Transcript()
		if len(messages) > 0 {
			cfg := interview.Config{
				Resume:         deps.resume,
				JobDescription: deps.job,
				Category:       category,
			}
			if _, saveErr := deps.store.Add(history.Record{
				Config:     cfg,
				Report:     fb,
				Transcript: messages,
			}); saveErr != nil {
				log.Warnf("archiving interview failed: %v", saveErr)
			}
		}
		return reportMsg{report: fb, err: err}
	}
}

func beginTurn(orch *session.Orchestrator) tea.Cmd {
	return func() tea.Msg {
		dialCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := orch.BeginTurn(dialCtx); err != nil {
			return turnErrMsg{err: err}
		}
		return nil
	}
}

func endTurn(orch *session.Orchestrator) tea.Cmd {
	return func() tea.Msg {
		if err := orch.EndTurn(context.Background()); err != nil {
			return turnErrMsg{err: err}
		}
		return nil
	}
}
