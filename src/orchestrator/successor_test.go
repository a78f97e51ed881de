package orchestrator

import (
	"errors"
	"testing"

	"github.com/stake-plus/storyvote/src/ledger"
	"github.com/stake-plus/storyvote/src/types"
)

func TestNextSessionType(t *testing.T) {
	cases := []struct {
		name       string
		paragraphs int
		status     ledger.BookStatus
		noBook     bool
		requested  types.SessionType
		want       types.SessionType
		archives   bool
	}{
		{name: "no book", noBook: true, requested: types.SessionParagraph, want: types.SessionTitle},
		{name: "archived", paragraphs: 10, status: ledger.BookArchived, requested: types.SessionParagraph, want: types.SessionTitle},
		{name: "title with open book", paragraphs: 9, requested: types.SessionTitle, want: types.SessionParagraph},
		{name: "paragraph with open book", paragraphs: 3, requested: types.SessionParagraph, want: types.SessionParagraph},
		{name: "full but open", paragraphs: 10, requested: types.SessionParagraph, want: types.SessionTitle, archives: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			if !tc.noBook {
				env.ledger.setBook(tc.paragraphs, tc.status)
			}
			got, err := env.orch.NextSessionType(env.ctx, tc.requested)
			if err != nil {
				t.Fatalf("NextSessionType: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
			ops := env.ledger.ops()
			if tc.archives {
				if len(ops) != 1 || ops[0] != ledger.OpAddParagraphAndArchive || env.ledger.authors[0] != SystemAuthor {
					t.Fatalf("corrective write = %v by %v", ops, env.ledger.authors)
				}
			} else if len(ops) != 0 {
				t.Fatalf("unexpected writes %v", ops)
			}
		})
	}
}

func TestAutoArchiveErrorIsSwallowed(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ledger.setBook(12, ledger.BookOngoing)
	env.ledger.archErr = errors.New("MoveAbort")

	got, err := env.orch.NextSessionType(env.ctx, types.SessionParagraph)
	if err != nil || got != types.SessionTitle {
		t.Fatalf("got %s, %v", got, err)
	}
}

func TestNextSessionTypeKeepsRequestedOnReadError(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ledger.readErr = errors.New("rpc down")
	got, err := env.orch.NextSessionType(env.ctx, types.SessionParagraph)
	if err == nil || got != types.SessionParagraph {
		t.Fatalf("got %s, %v", got, err)
	}
}

func TestGetOrCreateActiveSession(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ledger.setBook(2, ledger.BookOngoing)

	first, err := env.orch.GetOrCreateActiveSession(env.ctx)
	if err != nil || first.Type != types.SessionParagraph {
		t.Fatalf("first = %+v, %v", first, err)
	}
	again, err := env.orch.GetOrCreateActiveSession(env.ctx)
	if err != nil || again.ID != first.ID {
		t.Fatalf("second call = %+v, %v; want %d", again, err, first.ID)
	}

	if ok, _ := env.sessions.Claim(env.ctx, first.ID); !ok {
		t.Fatalf("claim failed")
	}
	resolving, err := env.orch.GetOrCreateActiveSession(env.ctx)
	if err != nil || resolving.ID != first.ID || resolving.Status != types.StatusResolving {
		t.Fatalf("during resolution got %+v, %v", resolving, err)
	}
}

func TestGetOrCreateFallsBackWhenBookUnreadable(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ledger.readErr = errors.New("rpc down")

	session, err := env.orch.GetOrCreateActiveSession(env.ctx)
	if err != nil {
		t.Fatalf("GetOrCreateActiveSession: %v", err)
	}
	if session.Type != types.SessionTitle || env.activeCount() != 1 {
		t.Fatalf("session = %+v, active = %d", session, env.activeCount())
	}

	// the periodic check takes the same fallback
	env2 := newTestEnv(t, nil)
	env2.ledger.readErr = errors.New("rpc down")
	report := env2.tick()
	if report.Created == nil || report.Created.Type != session.Type {
		t.Fatalf("tick created %+v, want %s", report.Created, session.Type)
	}
}
