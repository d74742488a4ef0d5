package main

import (
	"context"
	"errors"
	"testing"

	"github.com/newtron-network/portmgr/pkg/auth"
	"github.com/newtron-network/portmgr/pkg/hal"
	"github.com/newtron-network/portmgr/pkg/hal/fake"
	"github.com/newtron-network/portmgr/pkg/port"
	"github.com/newtron-network/portmgr/pkg/util"
)

func simSession(t *testing.T, n int) (*session, *fake.Driver) {
	t.Helper()
	f := fake.New()
	f.Populate(0, n)
	s := &session{dev: 0, tbl: port.New(f, f)}
	t.Cleanup(s.Close)
	return s, f
}

func TestParseFields(t *testing.T) {
	data, err := parseFields([]string{"$TX_MTU=9100", "rx_mtu=9100", "port_enable=on", "speed=BF_SPEED_25G"})
	if err != nil {
		t.Fatalf("parseFields() error = %v", err)
	}
	if got := data.Len(); got != 4 {
		t.Errorf("Len() = %d, want 4", got)
	}
	if mtu, _ := data.GetU32(port.FieldRxMTU); mtu != 9100 {
		t.Errorf("rx_mtu = %d, want 9100", mtu)
	}
	if en, _ := data.GetBool(port.FieldPortEnable); !en {
		t.Error("port_enable = false, want true")
	}
	if s, _ := data.GetString(port.FieldSpeed); s != "BF_SPEED_25G" {
		t.Errorf("speed = %q", s)
	}
}

func TestParseFields_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"none", nil},
		{"no equals", []string{"tx_mtu"}},
		{"unknown field", []string{"bogus=1"}},
		{"not a number", []string{"tx_mtu=big"}},
		{"exceeds width", []string{"rx_prsr_pri_thresh=8"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFields(tt.args)
			if !errors.Is(err, util.ErrInvalidArgument) {
				t.Errorf("parseFields(%v) error = %v, want invalid argument", tt.args, err)
			}
		})
	}
}

func TestEnumerate(t *testing.T) {
	ctx := context.Background()
	s, _ := simSession(t, enumBatch+4)

	rows, err := enumerate(ctx, s, listFields)
	if err != nil {
		t.Fatalf("enumerate() error = %v", err)
	}
	if len(rows) != enumBatch+4 {
		t.Fatalf("enumerate() = %d rows, want %d", len(rows), enumBatch+4)
	}
	for i, r := range rows {
		if want := hal.DevPort(i * 4); r.Port != want {
			t.Errorf("rows[%d].Port = %d, want %d", i, r.Port, want)
		}
	}
	if got := rows[1].get(port.FieldPortName); got != "2/0" {
		t.Errorf("rows[1] name = %q, want 2/0", got)
	}
	if got := shortLabel(rows[0].get(port.FieldFEC)); got != "REED_SOLOMON" {
		t.Errorf("rows[0] fec = %q", got)
	}
}

func TestEnumerate_Empty(t *testing.T) {
	ctx := context.Background()
	s, _ := simSession(t, 2)
	if err := s.tbl.EntryClear(ctx, 0); err != nil {
		t.Fatal(err)
	}
	rows, err := enumerate(ctx, s, listFields)
	if err != nil || rows != nil {
		t.Errorf("enumerate() = %v, %v; want nil, nil", rows, err)
	}
}

func TestSelectPorts(t *testing.T) {
	ctx := context.Background()
	s, _ := simSession(t, 4)

	ports, err := selectPorts(ctx, s, []string{"2/0", "fp:0", "4,0"})
	if err != nil {
		t.Fatalf("selectPorts() error = %v", err)
	}
	want := []hal.DevPort{4, 0}
	if len(ports) != len(want) || ports[0] != want[0] || ports[1] != want[1] {
		t.Errorf("selectPorts() = %v, want %v", ports, want)
	}

	if _, err := selectPorts(ctx, s, []string{"9/0"}); !errors.Is(err, util.ErrObjectNotFound) {
		t.Errorf("unknown name error = %v, want not found", err)
	}
}

func TestWriteAll_JoinsFailures(t *testing.T) {
	ctx := context.Background()
	s, f := simSession(t, 3)
	jsonOutput = true
	defer func() { jsonOutput = false }()

	boom := errors.New("boom")
	err := writeAll(ctx, s, []hal.DevPort{0, 4, 8}, "set", func(ctx context.Context, p hal.DevPort) error {
		if p == 4 {
			return boom
		}
		return f.PortEnable(ctx, 0, p, true)
	})
	if !errors.Is(err, boom) {
		t.Errorf("writeAll() error = %v, want boom", err)
	}
	if n := f.Count("PortEnable"); n != 2 {
		t.Errorf("PortEnable called %d times, want 2", n)
	}
}

func TestShortLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"BF_SPEED_100G", "100G"},
		{"BF_FEC_TYP_NONE", "NONE"},
		{"BF_MEDIA_TYPE_COPPER", "COPPER"},
		{"PM_PORT_DIR_TX_ONLY", "TX_ONLY"},
		{"custom", "custom"},
	}
	for _, tt := range tests {
		if got := shortLabel(tt.in); got != tt.want {
			t.Errorf("shortLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPortLabel(t *testing.T) {
	ctx := context.Background()
	s, _ := simSession(t, 1)
	if got := portLabel(ctx, s, 0); got != "0 (1/0)" {
		t.Errorf("portLabel(0) = %q", got)
	}
	if got := portLabel(ctx, s, fake.RecircBase); got != "448" {
		t.Errorf("portLabel(recirc) = %q", got)
	}
}

func TestCheckPermission(t *testing.T) {
	defer func() { permChecker = nil }()
	policy := &auth.Policy{Permissions: map[string][]string{"port.modify": {"alice"}}}

	permChecker = auth.NewChecker(policy, "alice")
	if err := checkPermission(auth.PermPortModify, "1/0"); err != nil {
		t.Errorf("alice port.modify: %v", err)
	}
	if err := checkPermission(auth.PermPortDelete, "1/0"); !errors.Is(err, util.ErrPermissionDenied) {
		t.Errorf("alice port.delete error = %v, want permission denied", err)
	}

	err := writePorts("1/0", "delete", auth.PermPortDelete, func(context.Context, *session, hal.DevPort) error {
		t.Error("op must not run without permission")
		return nil
	})
	if !errors.Is(err, util.ErrPermissionDenied) {
		t.Errorf("writePorts() error = %v, want permission denied", err)
	}
}
