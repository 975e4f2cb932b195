package plugin

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// HostAPIVersion is the host API version this SDK implements. Plugins
// declare the version they were built against in their manifest; a plugin is
// loadable when the host version satisfies the same-major, at-least-minor
// rule.
const HostAPIVersion = "1.2.0"

// CheckHostAPI validates that a plugin built against required is servable by
// this host. An empty requirement is accepted.
func CheckHostAPI(pluginName, required string) error {
	if required == "" {
		return nil
	}

	req, err := semver.NewVersion(required)
	if err != nil {
		return fmt.Errorf("plugin %q: invalid host API version %q: %w", pluginName, required, err)
	}

	constraint, err := semver.NewConstraint(fmt.Sprintf("^%d.%d", req.Major(), req.Minor()))
	if err != nil {
		return fmt.Errorf("building host API constraint for %q: %w", required, err)
	}

	host := semver.MustParse(HostAPIVersion)
	if !constraint.Check(host) {
		return &HostAPIError{Plugin: pluginName, Required: required, Supported: HostAPIVersion}
	}
	return nil
}
