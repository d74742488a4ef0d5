package port

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/newtron-network/portmgr/pkg/util"
)

// ErrorPolicy decides what a write does when a field group is incomplete
// or a non-critical driver setter fails. Failures of the speed change, FEC,
// port add and administrative enable always abort regardless of policy.
type ErrorPolicy uint8

const (
	// PolicyWarn logs the failure, skips the group and carries on.
	PolicyWarn ErrorPolicy = iota
	// PolicyStrict aborts the write with the failure.
	PolicyStrict
)

func (p ErrorPolicy) String() string {
	switch p {
	case PolicyWarn:
		return "warn"
	case PolicyStrict:
		return "strict"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// ParsePolicy accepts "warn" or "strict". An empty string is PolicyWarn.
func ParsePolicy(s string) (ErrorPolicy, error) {
	switch s {
	case "", "warn":
		return PolicyWarn, nil
	case "strict":
		return PolicyStrict, nil
	default:
		return PolicyWarn, fmt.Errorf("%w: unknown field error policy %q", util.ErrInvalidArgument, s)
	}
}

// tolerate applies the policy to a failed step of group. It returns nil
// when the write may continue.
func (p ErrorPolicy) tolerate(log *logrus.Entry, group string, err error, skipped *[]string) error {
	if p == PolicyStrict {
		return err
	}
	log.Errorf("%s not applied: %v", group, err)
	*skipped = append(*skipped, group)
	return nil
}
