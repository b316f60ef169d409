package homework

import (
	"errors"
	"testing"
)

func TestResolveApproved(t *testing.T) {
	msg, err := Resolve(Submission{FieldName: "hw05_final", FieldStatus: "approved"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := `Изменился статус проверки работы "hw05_final". Работа проверена: ревьюеру всё понравилось. Ура!`
	if msg != want {
		t.Fatalf("got %q\nwant %q", msg, want)
	}
}

func TestResolveKnownStatuses(t *testing.T) {
	t.Parallel()
	for status, verdict := range Verdicts {
		status, verdict := status, verdict
		t.Run(status, func(t *testing.T) {
			t.Parallel()
			msg, err := Resolve(Submission{FieldName: "x", FieldStatus: status})
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if want := "Изменился статус проверки работы \"x\". " + verdict; msg != want {
				t.Fatalf("got %q, want %q", msg, want)
			}
		})
	}
}

func TestResolveErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		in    Submission
		want  error
		field string
	}{
		{name: "no name", in: Submission{FieldStatus: "approved"}, want: ErrMissingField, field: FieldName},
		{name: "name not string", in: Submission{FieldName: 7, FieldStatus: "approved"}, want: ErrMissingField, field: FieldName},
		{name: "no status", in: Submission{FieldName: "x"}, want: ErrMissingField, field: FieldStatus},
		{name: "unknown status", in: Submission{FieldName: "x", FieldStatus: "lost"}, want: ErrUnknownStatus},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			msg, err := Resolve(tt.in)
			if msg != "" {
				t.Fatalf("expected empty message, got %q", msg)
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if tt.field != "" {
				var fe *FieldError
				if !errors.As(err, &fe) || fe.Field != tt.field {
					t.Fatalf("err = %#v, want field %q", err, tt.field)
				}
			}
		})
	}
}

func TestResolveUnknownStatusNamesValue(t *testing.T) {
	_, err := Resolve(Submission{FieldName: "x", FieldStatus: "on_hold"})
	var se *StatusError
	if !errors.As(err, &se) || se.Status != "on_hold" {
		t.Fatalf("err = %#v", err)
	}
	if got := err.Error(); got != `unknown homework status: "on_hold"` {
		t.Fatalf("Error() = %q", got)
	}
}
