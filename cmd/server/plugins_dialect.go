package main

// 注册平台方言插件
import (
	_ "github.com/netshellpro/netshellpro/addone/dialect/platforms/cisco_ios"
	_ "github.com/netshellpro/netshellpro/addone/dialect/platforms/huawei_vrp"
	_ "github.com/netshellpro/netshellpro/addone/dialect/platforms/nxos"
)
