package main

import (
	_ "github.com/netshellpro/netshellpro/addone/dialect/platforms/cisco_ios"
	_ "github.com/netshellpro/netshellpro/addone/dialect/platforms/huawei_vrp"
	_ "github.com/netshellpro/netshellpro/addone/dialect/platforms/nxos"
)
