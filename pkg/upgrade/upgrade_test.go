package upgrade

import (
	"testing"

	"github.com/Willcoder111/vegur/pkg/headers"
)

func TestCheckPassesThroughWithoutUpgradeToken(t *testing.T) {
	h := headers.List{{Name: "Connection", Value: "keep-alive"}}
	upgraded, err := Check(h)
	if err != nil || upgraded {
		t.Fatalf("upgraded=%v err=%v, want false,nil", upgraded, err)
	}
}

func TestCheckAcceptsWellFormedUpgrade(t *testing.T) {
	h := headers.List{
		{Name: "Connection", Value: "upgrade"},
		{Name: "Upgrade", Value: "websocket"},
	}
	upgraded, err := Check(h)
	if err != nil || !upgraded {
		t.Fatalf("upgraded=%v err=%v, want true,nil", upgraded, err)
	}
}

func TestCheckRejectsMissingUpgradeHeader(t *testing.T) {
	h := headers.List{{Name: "Connection", Value: "upgrade"}}
	_, err := Check(h)
	if err == nil {
		t.Fatalf("expected client error for missing Upgrade header")
	}
}

func TestCheckIsCaseInsensitive(t *testing.T) {
	h := headers.List{
		{Name: "Connection", Value: "Upgrade"},
		{Name: "Upgrade", Value: "WebSocket"},
	}
	upgraded, err := Check(h)
	if err != nil || !upgraded {
		t.Fatalf("upgraded=%v err=%v, want true,nil", upgraded, err)
	}
}
