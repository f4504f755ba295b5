package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestConfirmProduction(t *testing.T) {
	bctx := &BootstrapContext{Environment: "prod", AccountID: "123456789012", AWSRegion: "us-east-1"}

	tests := []struct {
		input string
		want  bool
	}{
		{"yes\n", true},
		{"  YES \n", true},
		{"y\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		if got := confirmProduction(bctx, strings.NewReader(tt.input), &out); got != tt.want {
			t.Errorf("input %q: got %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "123456789012") {
			t.Error("warning should name the account")
		}
	}
}

func TestPrintBanner(t *testing.T) {
	var out bytes.Buffer
	printBanner(&BootstrapContext{Environment: "dev", AccountID: "123456789012", AWSRegion: "eu-west-1"}, &out)

	got := out.String()
	if !strings.Contains(got, "/dev/birthdaybot/") {
		t.Errorf("banner missing SSM prefix:\n%s", got)
	}
	if strings.Contains(got, "Profile:") {
		t.Error("empty profile should be omitted")
	}
}
