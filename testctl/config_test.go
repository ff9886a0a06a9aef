package testctl

import "testing"

func TestMapConfigGetLinkMatchesServerRoleAndProtocol(t *testing.T) {
	cfg := &MapConfig{
		Links: []Link{
			{Protocol: "FIX", ActsAsServer: "test-server", Host: "127.0.0.1", Port: 9940},
			{Protocol: "OTHER", ActsAsServer: "test-server", Host: "127.0.0.1", Port: 9941},
		},
	}

	link, err := cfg.GetLink("client", "test-server", "FIX")
	if err != nil {
		t.Fatal(err)
	}
	if link.Port != 9940 {
		t.Errorf("expected the FIX link (port 9940), got port %d", link.Port)
	}
}

func TestMapConfigGetLinkDefaultsProtocolToFIX(t *testing.T) {
	cfg := &MapConfig{
		Links: []Link{{ActsAsServer: "test-server", Port: 9940}},
	}

	link, err := cfg.GetLink("client", "test-server", "")
	if err != nil {
		t.Fatal(err)
	}
	if link.Port != 9940 {
		t.Errorf("expected protocol-less link to default-match FIX, got port %d", link.Port)
	}
}

func TestMapConfigGetLinkNoMatch(t *testing.T) {
	cfg := &MapConfig{Links: []Link{{ActsAsServer: "other-server"}}}

	if _, err := cfg.GetLink("client", "test-server", "FIX"); err == nil {
		t.Fatalf("expected an error when no link matches")
	}
}

func TestMapConfigGetRoleReturnsIndependentCopy(t *testing.T) {
	cfg := &MapConfig{Roles: map[string]Role{"client": {"name": "c1"}}}

	r1, err := cfg.GetRole("client")
	if err != nil {
		t.Fatal(err)
	}
	r1["name"] = "mutated"

	r2, err := cfg.GetRole("client")
	if err != nil {
		t.Fatal(err)
	}
	if r2["name"] != "c1" {
		t.Errorf("expected GetRole to return a deep copy unaffected by caller mutation, got %v", r2["name"])
	}
}
