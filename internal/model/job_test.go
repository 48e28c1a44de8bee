package model

import "testing"

func TestJob_FailPrefixesStage(t *testing.T) {
	j := NewJob("siteA", nil, "siteA 2026-01-02")
	j.SetPrefix(StageMessages)
	j.Fail("no inbox")

	if !j.Failed() {
		t.Fatal("job should be failed")
	}
	if got, want := j.Reason(), "Messages=> no inbox"; got != want {
		t.Errorf("Reason() = %q, want %q", got, want)
	}
}

func TestJob_FailIsSetOnce(t *testing.T) {
	j := NewJob("siteA", nil, "siteA 2026-01-02")
	j.SetPrefix(StageSignIn)
	j.Fail("first")
	j.SetPrefix(StageDetails)
	j.Fail("second")

	if got, want := j.Reason(), "Sign_in=> first"; got != want {
		t.Errorf("Reason() = %q, want %q", got, want)
	}
}

func TestJob_ClearTransient(t *testing.T) {
	j := NewJob("siteA", nil, "siteA 2026-01-02")
	j.SetPrefix(StageDetails)
	j.Scratch = "<html>"
	j.Result = "ok"
	j.ClearTransient()

	if j.Prefix() != "" || j.Scratch != "" {
		t.Errorf("transient fields not cleared: prefix=%q scratch=%q", j.Prefix(), j.Scratch)
	}
	if j.Result != "ok" {
		t.Errorf("Result = %q, want ok", j.Result)
	}
}

func TestDecodeAccount(t *testing.T) {
	var acct struct {
		Cookie string `yaml:"cookie"`
		Acct   int    `yaml:"acct"`
	}
	err := DecodeAccount(map[string]any{"cookie": "c=1", "acct": 2}, &acct)
	if err != nil {
		t.Fatalf("DecodeAccount: %v", err)
	}
	if acct.Cookie != "c=1" || acct.Acct != 2 {
		t.Errorf("decoded = %+v", acct)
	}
}
