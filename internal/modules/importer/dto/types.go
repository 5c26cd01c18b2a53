package dto

import activitydto "worktally/internal/modules/activity/dto"

type PluginInfo struct {
	Name    string
	Version string
	Enabled bool
	Binary  string
}

type DoctorResult struct {
	Name            string
	ChecksumValid   bool
	BinaryReachable bool
	LifecycleOK     bool
	Error           string
}

type RunInput struct {
	PluginName string
	FromMs     int64
	ToMs       int64
}

type RunOutput struct {
	PluginName string
	Source     string
	Records    int
	Import     activitydto.ImportOutput
}
