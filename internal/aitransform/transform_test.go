package aitransform

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubProvider struct {
	reply  string
	err    error
	calls  int
	prompt Prompt
}

func (s *stubProvider) Complete(_ context.Context, p Prompt) (string, error) {
	s.calls++
	s.prompt = p
	return s.reply, s.err
}

func TestTransformSendsMarkedBody(t *testing.T) {
	p := &stubProvider{reply: "rewritten"}
	svc := NewService(p, nil)

	got, err := svc.Transform(context.Background(), "old", "old\nnew")
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if got != "rewritten" {
		t.Errorf("got %q, want %q", got, "rewritten")
	}
	if !strings.Contains(p.prompt.User, OpenMarker+"\nnew"+CloseMarker) {
		t.Errorf("user prompt = %q, want marked insertion", p.prompt.User)
	}
	if p.prompt.System == "" {
		t.Error("system instruction is empty")
	}
}

func TestTransformIdenticalSkipsProvider(t *testing.T) {
	p := &stubProvider{reply: "should not be used"}
	got, err := NewService(p, nil).Transform(context.Background(), "same", "same")
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if got != "same" || p.calls != 0 {
		t.Errorf("got %q after %d calls, want body unchanged and no calls", got, p.calls)
	}
}

func TestTransformCleansReply(t *testing.T) {
	p := &stubProvider{reply: "```markdown\n[EDITED]# Title[/EDITED]\n\nbody\n```\n"}
	got, err := NewService(p, nil).Transform(context.Background(), "", "x")
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if want := "# Title\n\nbody"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTransformFailures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		reply string
		err   error
		want  error
	}{
		{"provider error", "", boom, boom},
		{"blank reply", "  \n ", nil, ErrEmptyResponse},
		{"markers only", "[EDITED][/EDITED]", nil, ErrEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&stubProvider{reply: tt.reply, err: tt.err}, nil)
			_, err := svc.Transform(context.Background(), "a", "b")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPassthrough(t *testing.T) {
	got, err := Passthrough{}.Transform(context.Background(), "a", "b")
	if err != nil || got != "b" {
		t.Errorf("Passthrough = %q, %v", got, err)
	}
}
