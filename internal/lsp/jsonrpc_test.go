package lsp

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestJSONRPCFramingMultipleMessages(t *testing.T) {
	var buf bytes.Buffer
	msgs := [][]byte{
		[]byte(`{"jsonrpc":"2.0","method":"initialized"}`),
		[]byte(`{"jsonrpc":"2.0","method":"memeful/lineOutcome","params":{"line":3}}`),
	}
	for i, msg := range msgs {
		if err := writeMessage(&buf, msg); err != nil {
			t.Fatalf("write message %d: %v", i, err)
		}
	}

	reader := bufio.NewReader(bytes.NewReader(buf.Bytes()))
	for i, want := range msgs {
		got, err := readMessage(reader)
		if err != nil {
			t.Fatalf("read message %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("unexpected message %d: %s", i, got)
		}
	}
}

func TestReadMessageHeaders(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"extra header", "Content-Type: application/vscode-jsonrpc\r\ncontent-length: 2\r\n\r\n{}", "{}", false},
		{"missing length", "Content-Type: x\r\n\r\n{}", "", true},
		{"bad length", "Content-Length: two\r\n\r\n{}", "", true},
		{"too large", "Content-Length: 999999999999\r\n\r\n", "", true},
	}
	for _, tc := range tests {
		got, err := readMessage(bufio.NewReader(strings.NewReader(tc.input)))
		if tc.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tc.name)
			}
			continue
		}
		if err != nil || string(got) != tc.want {
			t.Errorf("%s: got %q, %v", tc.name, got, err)
		}
	}
	_, err := readMessage(bufio.NewReader(strings.NewReader("\r\n")))
	if !errors.Is(err, errMissingContentLength) {
		t.Fatalf("expected errMissingContentLength, got %v", err)
	}
}
