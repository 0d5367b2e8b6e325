package permission

// MatchBashPermission finds the matching permission action for a command.
func MatchBashPermission(cmd BashCommand, permissions map[string]PermissionAction) PermissionAction {
	// Build command string variations for matching
	cmdWithSubcommand := cmd.Name
	if cmd.Subcommand != "" {
		cmdWithSubcommand = cmd.Name + " " + cmd.Subcommand
	}

	// Try most specific match first: "git commit *"
	if cmd.Subcommand != "" {
		if action, ok := permissions[cmdWithSubcommand+" *"]; ok {
			return action
		}
	}

	// Try command + wildcard: "git *"
	if action, ok := permissions[cmd.Name+" *"]; ok {
		return action
	}

	// Try command alone: "git"
	if action, ok := permissions[cmd.Name]; ok {
		return action
	}

	// Try global wildcard: "*"
	if action, ok := permissions["*"]; ok {
		return action
	}

	// Default to ask
	return ActionAsk
}

// BuildPattern creates a permission pattern for a command.
// For "git commit -m msg", returns "git commit *"
// For "ls -la", returns "ls *"
func BuildPattern(cmd BashCommand) string {
	if cmd.Subcommand != "" {
		return cmd.Name + " " + cmd.Subcommand + " *"
	}
	return cmd.Name + " *"
}
