package simhost

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/go-drift/peko/pkg/permissions"
	"github.com/go-drift/peko/pkg/platform"
)

func setup(t *testing.T, opts Options) (*Bridge, *platform.Host) {
	t.Helper()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	platform.SetCodec(opts.Codec)
	b := New(opts)
	platform.SetNativeBridge(b)
	t.Cleanup(platform.ResetForTest)
	return b, platform.NewHost(permissions.ScopeApplication)
}

func TestRequestAgainstSimulatedHost(t *testing.T) {
	for _, codec := range []platform.MessageCodec{platform.JsonCodec{}, platform.CborCodec{}} {
		t.Run(codecName(codec), func(t *testing.T) {
			b, host := setup(t, Options{
				Granted: []string{"CAMERA"},
				Decisions: map[string]Decision{
					"RECORD_AUDIO": {Granted: false, CanShowAgain: false},
					"CONTACTS":     {Granted: true},
				},
				Codec: codec,
			})

			s := permissions.New(host).Request(context.Background(), "CAMERA", "RECORD_AUDIO", "CONTACTS", "CALENDAR")
			got, err := s.Collect(context.Background())
			if err != nil {
				t.Fatalf("Collect: %v", err)
			}
			<-s.Done()

			want := []string{
				"Granted(CAMERA)",
				"Denied.DeniedPermanently(RECORD_AUDIO)",
				"Granted(CONTACTS)",
				"Denied.NeedsRationale(CALENDAR)",
			}
			if len(got) != len(want) {
				t.Fatalf("got %v, want %v", got, want)
			}
			for i := range want {
				if got[i].String() != want[i] {
					t.Errorf("result %d = %s, want %s", i, got[i], want[i])
				}
			}
			if n := b.Attached(); n != 0 {
				t.Errorf("expected surfaces to be detached, %d attached", n)
			}
		})
	}
}

func TestDecisionsAreRemembered(t *testing.T) {
	b, host := setup(t, Options{
		Decisions: map[string]Decision{
			"CONTACTS":     {Granted: true},
			"RECORD_AUDIO": {Granted: false, CanShowAgain: true},
		},
	})

	if ok, err := permissions.New(host).AreGranted("CONTACTS"); err != nil || ok {
		t.Fatalf("AreGranted before dialog = %v, %v", ok, err)
	}

	s := permissions.New(host).Request(context.Background(), "CONTACTS", "RECORD_AUDIO")
	if _, err := s.Collect(context.Background()); err != nil {
		t.Fatal(err)
	}
	b.Wait()

	if ok, err := permissions.New(host).AreGranted("CONTACTS"); err != nil || !ok {
		t.Errorf("AreGranted after grant = %v, %v", ok, err)
	}
	show, err := host.ShouldShowRationale("RECORD_AUDIO")
	if err != nil || !show {
		t.Errorf("ShouldShowRationale = %v, %v", show, err)
	}

	// Only the still-denied name is prompted the second time.
	rs, err := permissions.New(host).Request(context.Background(), "CONTACTS", "RECORD_AUDIO").Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rs) != 2 || !rs[0].IsGranted() || !rs[1].NeedsRationale() {
		t.Errorf("second request = %v", rs)
	}
}

func TestPermanentDenialSticks(t *testing.T) {
	b, host := setup(t, Options{
		Decisions: map[string]Decision{"RECORD_AUDIO": {Granted: false, CanShowAgain: false}},
	})

	for i := 0; i < 2; i++ {
		rs, err := permissions.New(host).Request(context.Background(), "RECORD_AUDIO").Collect(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if len(rs) != 1 || !rs[0].IsDeniedPermanently() {
			t.Fatalf("request %d = %v", i, rs)
		}
	}
	b.Wait()
}

func TestUnknownSurface(t *testing.T) {
	b, _ := setup(t, Options{})

	args, _ := platform.JsonCodec{}.Encode(map[string]any{
		"requestId":   "r-1",
		"surface":     "surface-99",
		"permissions": []string{"CAMERA"},
	})
	if _, err := b.InvokeMethod(platform.PermissionsChannel, "request", args); err == nil {
		t.Error("expected error for an unattached surface")
	}
	if _, err := b.InvokeMethod("other/channel", "check", nil); err != platform.ErrChannelNotFound {
		t.Errorf("expected ErrChannelNotFound, got %v", err)
	}
	if _, err := b.InvokeMethod(platform.PermissionsChannel, "reboot", nil); err != platform.ErrMethodNotFound {
		t.Errorf("expected ErrMethodNotFound, got %v", err)
	}
}

func TestOpenSettings(t *testing.T) {
	setup(t, Options{})
	if err := platform.OpenAppSettings(); err != nil {
		t.Fatalf("OpenAppSettings: %v", err)
	}
}

func codecName(c platform.MessageCodec) string {
	switch c.(type) {
	case platform.CborCodec:
		return "cbor"
	default:
		return "json"
	}
}
