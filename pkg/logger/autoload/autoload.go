// Package autoload initialises the global logger from LOG_* variables when
// imported for side effects.
package autoload

import (
	configx "github.com/JRealValdes/jarvis/pkg/config"
	logx "github.com/JRealValdes/jarvis/pkg/logger"
)

func init() {
	conf, err := configx.FromEnv[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*conf)
}
