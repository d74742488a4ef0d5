// Package profile loads YAML port profiles and applies them to a port
// table. A profile names ports by selector and lists the field values they
// should hold:
//
//	name: leaf-uplinks
//	device: 0
//	policy: strict
//	ports:
//	  - select: 1/0
//	    fields:
//	      $SPEED: BF_SPEED_100G
//	      $FEC: BF_FEC_TYP_RS
//	      $TX_MTU: 9100
//	      $RX_MTU: 9100
//	      $PORT_ENABLE: true
//	  - select: fp:7
//	    state: absent
package profile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/portmgr/pkg/field"
	"github.com/newtron-network/portmgr/pkg/hal"
	"github.com/newtron-network/portmgr/pkg/port"
	"github.com/newtron-network/portmgr/pkg/util"
)

// Port states.
const (
	StatePresent = "present"
	StateAbsent  = "absent"
)

// Profile is a parsed profile file.
type Profile struct {
	Name   string     `yaml:"name"`
	Device uint32     `yaml:"device"`
	Policy string     `yaml:"policy,omitempty"`
	Ports  []PortSpec `yaml:"ports"`
}

// PortSpec is the desired state of the ports one selector names.
type PortSpec struct {
	Select string            `yaml:"select"`
	State  string            `yaml:"state,omitempty"`
	Fields map[string]string `yaml:"fields,omitempty"`

	values map[field.ID]field.Value
}

// Parse reads and validates the profile at path.
func Parse(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile %s: %w", path, err)
	}
	p, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// Load parses and validates profile YAML.
func Load(data []byte) (*Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidArgument, err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Profile) validate() error {
	v := &util.ValidationBuilder{}
	if _, err := port.ParsePolicy(p.Policy); err != nil {
		v.AddErrorf("policy: %v", err)
	}
	for i := range p.Ports {
		s := &p.Ports[i]
		prefix := fmt.Sprintf("ports[%d]", i)
		v.Add(strings.TrimSpace(s.Select) != "", prefix+": select is required")
		if s.State == "" {
			s.State = StatePresent
		}
		switch s.State {
		case StatePresent:
			v.Add(len(s.Fields) > 0, prefix+": fields are required for a present port")
		case StateAbsent:
			v.Add(len(s.Fields) == 0, prefix+": an absent port takes no fields")
		default:
			v.AddErrorf("%s: state must be %s or %s, got %q", prefix, StatePresent, StateAbsent, s.State)
		}
		s.values = make(map[field.ID]field.Value, len(s.Fields))
		for name, text := range s.Fields {
			d, ok := port.Schema.Lookup(fieldName(name))
			if !ok {
				v.AddErrorf("%s: unknown field %s", prefix, name)
				continue
			}
			if d.ReadOnly {
				v.AddErrorf("%s: field %s is read-only", prefix, d.Name)
				continue
			}
			val, err := field.ParseValue(d, text)
			if err != nil {
				v.AddErrorf("%s: %v", prefix, err)
				continue
			}
			if canon, ok := labels[d.ID]; ok {
				label, ok := canon(string(val.(field.Str)))
				if !ok {
					v.AddErrorf("%s: %s: unknown label %q", prefix, d.Name, text)
					continue
				}
				val = field.Str(label)
			}
			s.values[d.ID] = val
		}
	}
	return v.Build()
}

// labels canonicalizes enum labels, so aliases compare equal to what a
// read returns.
var labels = map[field.ID]func(string) (string, bool){
	port.FieldSpeed:     canonical(hal.ParseSpeed),
	port.FieldFEC:       canonical(hal.ParseFEC),
	port.FieldAutoneg:   canonical(hal.ParseAutonegPolicy),
	port.FieldLoopback:  canonical(hal.ParseLoopbackMode),
	port.FieldDirection: canonical(hal.ParseDirection),
	port.FieldMediaType: canonical(hal.ParseMediaType),
}

func canonical[T fmt.Stringer](parse func(string) (T, bool)) func(string) (string, bool) {
	return func(s string) (string, bool) {
		v, ok := parse(s)
		if !ok {
			return "", false
		}
		return v.String(), true
	}
}

// fieldName accepts "$TX_MTU", "TX_MTU" and "tx_mtu".
func fieldName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	if !strings.HasPrefix(name, "$") {
		name = "$" + name
	}
	return name
}

// ErrorPolicy returns the profile's field error policy.
func (p *Profile) ErrorPolicy() port.ErrorPolicy {
	pol, _ := port.ParsePolicy(p.Policy)
	return pol
}

// Dev returns the device the profile targets.
func (p *Profile) Dev() hal.DevID { return hal.DevID(p.Device) }
