package app

import (
	"strings"

	"github.com/atotto/clipboard"
)

var clipboardWriteAll = clipboard.WriteAll

func (m *Model) copyWithStatus(text, success string) bool {
	if strings.TrimSpace(text) == "" {
		m.status = "nothing to copy"
		return false
	}
	if err := clipboardWriteAll(text); err != nil {
		m.status = "copy failed: " + humanizeClipboardError(err)
		return false
	}
	m.status = success
	return true
}

func humanizeClipboardError(err error) string {
	msg := strings.TrimSpace(err.Error())
	if msg == "exit status 1" {
		return "no GUI clipboard available"
	}
	return msg
}
