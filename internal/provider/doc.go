/*
Package provider abstracts the LLM backend behind the ProviderPort the
orchestrator drives, built on the Eino framework (https://github.com/cloudwego/eino)
so Anthropic Claude, OpenAI, and Volcengine ARK models share one session
interface.

# Core Components

  - Provider: a named ProviderPort backed by an Eino ToolCallingChatModel
  - Registry: resolves the architect/navigator/driver AgentConfigs to Providers
  - AgentSession / StreamingSession: the one-shot and multi-turn conversation
    contracts spec.md §4.1 requires
  - CanUseTool: the permission gate consulted before any tool call is
    surfaced to a session's caller

# Supported Providers

Anthropic Claude (direct API or AWS Bedrock), OpenAI (including
OpenAI-compatible and Azure endpoints), and Volcengine ARK.

# Streaming

StreamingSession.Messages() yields one types.AgentMessage per text chunk or
completed tool call; a Role=result message marks the end of a turn. Every
completed tool call is routed through CanUseTool before being emitted — a
denied call never reaches the session's caller as a tool-use item.

	sess, err := reg.Get("driver")
	session, err := sess.CreateStreamingSession(ctx, provider.StreamingConfig{
		SystemPrompt: prompt,
		Role:         provider.RoleDriver,
		CanUseTool:   gate,
		MaxTurns:     25,
	})
	session.SendMessage(ctx, plan)
	for msg := range session.Messages() {
		...
	}
*/
package provider
