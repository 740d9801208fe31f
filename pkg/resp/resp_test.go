package resp

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestReadCommand_Array(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "PING",
			input: "*1\r\n$4\r\nPING\r\n",
			want:  []string{"PING"},
		},
		{
			name:  "GETSET with empty value",
			input: "*3\r\n$6\r\nGETSET\r\n$12\r\nses_bot1-dev\r\n$0\r\n\r\n",
			want:  []string{"GETSET", "ses_bot1-dev", ""},
		},
		{
			name:  "simple string argument",
			input: "*2\r\n$3\r\nGET\r\n+key\r\n",
			want:  []string{"GET", "key"},
		},
		{
			name:  "empty array",
			input: "*0\r\n",
			want:  nil,
		},
		{
			name:  "null array",
			input: "*-1\r\n",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadCommand(bufio.NewReader(strings.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, want := range tt.want {
				if string(got[i]) != want {
					t.Errorf("arg[%d] = %q, want %q", i, got[i], want)
				}
			}
		})
	}
}

func TestReadCommand_EmptyBulkIsNotNull(t *testing.T) {
	input := "*2\r\n$0\r\n\r\n$-1\r\n"
	got, err := ReadCommand(bufio.NewReader(strings.NewReader(input)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] == nil || len(got[0]) != 0 {
		t.Errorf("arg[0] = %#v, want non-nil empty slice", got[0])
	}
	if got[1] != nil {
		t.Errorf("arg[1] = %#v, want nil", got[1])
	}
}

func TestReadCommand_Inline(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"PING", "PING\r\n", []string{"PING"}},
		{"with args", "GET mykey\r\n", []string{"GET", "mykey"}},
		{"empty line", "\r\n", nil},
		{"whitespace only", "   \r\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadCommand(bufio.NewReader(strings.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, want := range tt.want {
				if string(got[i]) != want {
					t.Errorf("arg[%d] = %q, want %q", i, got[i], want)
				}
			}
		})
	}
}

func TestReadCommand_Pipeline(t *testing.T) {
	input := "*1\r\n$4\r\nPING\r\n*2\r\n$3\r\nGET\r\n$3\r\nkey\r\n"
	r := bufio.NewReader(strings.NewReader(input))

	cmd1, err := ReadCommand(r)
	if err != nil {
		t.Fatalf("cmd1 error: %v", err)
	}
	if len(cmd1) != 1 || string(cmd1[0]) != "PING" {
		t.Errorf("cmd1 = %q, want [PING]", cmd1)
	}

	cmd2, err := ReadCommand(r)
	if err != nil {
		t.Fatalf("cmd2 error: %v", err)
	}
	if len(cmd2) != 2 || string(cmd2[1]) != "key" {
		t.Errorf("cmd2 = %q, want [GET key]", cmd2)
	}
}

func TestReadCommand_Limits(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"array length", "*1025\r\n"},
		{"bulk length", "*1\r\n$524289\r\n"},
		{"inline length", strings.Repeat("A", MaxInlineLen+1) + "\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCommand(bufio.NewReader(strings.NewReader(tt.input)))
			if !errors.Is(err, ErrLimitExceeded) {
				t.Fatalf("error = %v, want ErrLimitExceeded", err)
			}
		})
	}
}

func TestReadCommand_InvalidProtocol(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"array without CRLF", "*2\n$3\nGET\n$3\nkey\n"},
		{"invalid array count", "*abc\r\n"},
		{"invalid bulk length", "*1\r\n$xyz\r\n"},
		{"negative bulk length", "*1\r\n$-5\r\n"},
		{"missing bulk terminator", "*1\r\n$3\r\nabcXX"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadCommand(bufio.NewReader(strings.NewReader(tt.input))); err == nil {
				t.Error("expected protocol error")
			}
		})
	}
}

func TestReadReply(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, r Reply)
	}{
		{
			name:  "simple string",
			input: "+OK\r\n",
			check: func(t *testing.T, r Reply) {
				if r.Kind != KindSimple || r.Str != "OK" {
					t.Errorf("got %+v", r)
				}
			},
		},
		{
			name:  "error",
			input: "-NOAUTH Authentication required\r\n",
			check: func(t *testing.T, r Reply) {
				var re *Error
				if !errors.As(r.Err(), &re) {
					t.Fatalf("Err() = %v, want *Error", r.Err())
				}
				if re.Prefix() != "NOAUTH" {
					t.Errorf("Prefix() = %q, want NOAUTH", re.Prefix())
				}
			},
		},
		{
			name:  "integer",
			input: ":42\r\n",
			check: func(t *testing.T, r Reply) {
				if r.Kind != KindInteger || r.Int != 42 {
					t.Errorf("got %+v", r)
				}
			},
		},
		{
			name:  "null bulk",
			input: "$-1\r\n",
			check: func(t *testing.T, r Reply) {
				if !r.Null || r.Bulk != nil {
					t.Errorf("got %+v, want null", r)
				}
			},
		},
		{
			name:  "empty bulk",
			input: "$0\r\n\r\n",
			check: func(t *testing.T, r Reply) {
				if r.Null || r.Bulk == nil || len(r.Bulk) != 0 {
					t.Errorf("got %+v, want empty non-null bulk", r)
				}
			},
		},
		{
			name:  "scan reply",
			input: "*2\r\n$1\r\n0\r\n*2\r\n$5\r\nses_a\r\n$5\r\nses_b\r\n",
			check: func(t *testing.T, r Reply) {
				if len(r.Elems) != 2 || string(r.Elems[0].Bulk) != "0" {
					t.Fatalf("got %+v", r)
				}
				if len(r.Elems[1].Elems) != 2 || string(r.Elems[1].Elems[1].Bulk) != "ses_b" {
					t.Errorf("keys = %+v", r.Elems[1].Elems)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ReadReply(bufio.NewReader(strings.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, r)
		})
	}
}

func TestReadReply_Invalid(t *testing.T) {
	for _, input := range []string{"?what\r\n", ":abc\r\n", "\r\n", "*1\r\n*1\r\n*1\r\n*1\r\n*1\r\n:1\r\n"} {
		if _, err := ReadReply(bufio.NewReader(strings.NewReader(input))); err == nil {
			t.Errorf("ReadReply(%q) error = nil, want error", input)
		}
	}
}

func TestWriteCommand_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := WriteCommand(w, []byte("GETSET"), []byte("ses_x-y"), []byte{}); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	want := "*3\r\n$6\r\nGETSET\r\n$7\r\nses_x-y\r\n$0\r\n\r\n"
	if buf.String() != want {
		t.Fatalf("encoded = %q, want %q", buf.String(), want)
	}

	args, err := ReadCommand(bufio.NewReader(&buf))
	if err != nil {
		t.Fatal(err)
	}
	if len(args) != 3 || args[2] == nil || len(args[2]) != 0 {
		t.Errorf("decoded = %#v", args)
	}
}

func TestWriteReplies(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *bufio.Writer) error
		want  string
	}{
		{"simple", func(w *bufio.Writer) error { return WriteSimpleString(w, "PONG") }, "+PONG\r\n"},
		{"error", func(w *bufio.Writer) error { return WriteError(w, "ERR boom") }, "-ERR boom\r\n"},
		{"integer", func(w *bufio.Writer) error { return WriteInteger(w, -2) }, ":-2\r\n"},
		{"nil bulk", func(w *bufio.Writer) error { return WriteBulk(w, nil) }, "$-1\r\n"},
		{"empty bulk", func(w *bufio.Writer) error { return WriteBulk(w, []byte{}) }, "$0\r\n\r\n"},
		{"bulk string", func(w *bufio.Writer) error { return WriteBulkString(w, "abc") }, "$3\r\nabc\r\n"},
		{"array header", func(w *bufio.Writer) error { return WriteArrayHeader(w, 2) }, "*2\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := bufio.NewWriter(&buf)
			if err := tt.write(w); err != nil {
				t.Fatal(err)
			}
			w.Flush()
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestCommandName(t *testing.T) {
	tests := map[string]string{
		"getset": "GETSET",
		"GET":    "GET",
		"Exists": "EXISTS",
		"":       "",
	}
	for in, want := range tests {
		if got := CommandName([]byte(in)); got != want {
			t.Errorf("CommandName(%q) = %q, want %q", in, got, want)
		}
	}
}
