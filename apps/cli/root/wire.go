package root

import (
	"github.com/zenGate-Global/agencydesk/apps/cli/cmd/auth"
	"github.com/zenGate-Global/agencydesk/apps/cli/cmd/bootstrap"
	tenantcmd "github.com/zenGate-Global/agencydesk/apps/cli/cmd/tenant"
)

func init() {
	Root().AddCommand(auth.Command())
	Root().AddCommand(tenantcmd.Command())
	Root().AddCommand(bootstrap.Command())
}
