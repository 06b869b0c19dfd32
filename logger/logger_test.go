package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
		"off":   zerolog.Disabled,
		"":      zerolog.InfoLevel,
		"bogus": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWritesJSONWithService(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Service: "couchsim", Output: &buf})
	cl := Component(l, "store")
	cl.Info().Str("db", "posts").Msg("created")
	l.Debug().Msg("hidden")

	out := buf.String()
	for _, want := range []string{`"service":"couchsim"`, `"component":"store"`, `"db":"posts"`, `"message":"created"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line should be filtered at info level: %s", out)
	}
}

func TestPrettyOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Output: &buf, Pretty: true})
	l.Info().Msg("hello")
	if strings.Contains(buf.String(), `"message"`) {
		t.Errorf("expected console format, got %s", buf.String())
	}
}
