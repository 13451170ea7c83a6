package evo

type MonitorCommand string

const (
	CommandPause    MonitorCommand = "pause"
	CommandContinue MonitorCommand = "continue"
	CommandStop     MonitorCommand = "stop"
)

type StopReason string

const (
	StopGenerations      StopReason = "generations"
	StopFitnessGoal      StopReason = "fitness_goal"
	StopEvaluationsLimit StopReason = "evaluations_limit"
	StopCommand          StopReason = "stopped"
)
