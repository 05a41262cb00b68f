package engine

import (
	"github.com/warp-contracts/shadowlink/src/utils/config"
	"github.com/warp-contracts/shadowlink/src/utils/monitoring"
	"github.com/warp-contracts/shadowlink/src/utils/task"
)

type Controller struct {
	*task.Task

	Engine *Engine
}

// Engine with the monitoring server, used by the server command
func NewController(config *config.Config) (self *Controller, err error) {
	self = new(Controller)

	self.Engine, err = New(config)
	if err != nil {
		return
	}

	server := monitoring.NewServer(config).
		WithMonitor(self.Engine.Monitor)

	self.Task = task.NewTask(config, "controller").
		WithSubtask(self.Engine.Task).
		WithSubtask(server.Task)

	return
}
