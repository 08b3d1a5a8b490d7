// Package autoload initializes the global logger from the LOG_* environment
// on import:
//
//	import _ "github.com/voca-labs/voca/pkg/logger/autoload"
package autoload

import (
	configx "github.com/voca-labs/voca/pkg/config"
	logx "github.com/voca-labs/voca/pkg/logger"
)

func init() {
	cfg := configx.MustNew[logx.Config]("LOG")
	logx.Init(*cfg)
}
