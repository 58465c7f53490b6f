package config

import (
	"fmt"
	"path/filepath"
)

// AgentsSummaryPlaceholder is replaced in a system prompt with the
// registry's rendering of the known peers.
const AgentsSummaryPlaceholder = "{agents_summary}"

const researchPrompt = `You are a Research Agent specialized in finding information online.

You have access to web search tools via DuckDuckGo. Use them to:
- Search for current information, news, and facts
- Find answers to questions
- Research topics thoroughly

Always provide comprehensive and accurate search results.`

const writerPrompt = `You are a Writer Agent specialized in file system operations.

You have access to tools to:
- Read files and directories
- Write and create files
- List directory contents
- Manage files and folders

Always confirm what operations you've completed.`

const routingPrompt = `You are a task orchestrator that delegates work to specialized agents.

You have a delegate_to_agent tool to communicate with remote agents. Use it to delegate tasks based on each agent's capabilities.

` + AgentsSummaryPlaceholder + `

Workflow:
1. Analyze the user's request
2. Identify which agent(s) can handle it based on their skills
3. Use delegate_to_agent to delegate tasks to the appropriate agent(s)
4. For multi-step tasks, coordinate between agents as needed
5. Compile and return the final result to the user`

// Preset names accepted by ApplyPreset.
const (
	PresetResearch = "research"
	PresetWriter   = "writer"
	PresetRouting  = "routing"
)

// Default ports of the demo agents.
const (
	RoutingPort  = 8000
	ResearchPort = 8001
	WriterPort   = 8002
)

// ApplyPreset configures cfg as one of the demo agents. outputDir is the
// directory the writer's filesystem server is allowed to touch; it is
// ignored by other presets.
func ApplyPreset(cfg *Config, name, outputDir string) error {
	switch name {
	case PresetResearch:
		cfg.Agent.Name = "Research Agent"
		cfg.Agent.Description = "Searches the web for information using DuckDuckGo"
		cfg.Agent.SystemPrompt = researchPrompt
		cfg.Agent.Skills = []SkillConfig{{
			ID:          "web-search",
			Name:        "Web Search",
			Description: "Search the internet for information, news, and answers",
			Tags:        []string{"search", "web", "research"},
		}}
		cfg.ToolServers = []ToolServerConfig{{Command: "uvx ddgs-mcp"}}
		cfg.Server.Listen = fmt.Sprintf("localhost:%d", ResearchPort)
	case PresetWriter:
		if outputDir == "" {
			outputDir = "./output"
		}
		abs, err := filepath.Abs(outputDir)
		if err != nil {
			return fmt.Errorf("resolve output dir: %w", err)
		}
		cfg.Agent.Name = "Writer Agent"
		cfg.Agent.Description = "Reads and writes files to the filesystem"
		cfg.Agent.SystemPrompt = writerPrompt
		cfg.Agent.Skills = []SkillConfig{{
			ID:          "file-ops",
			Name:        "File Operations",
			Description: "Read, write, and manage files and directories",
			Tags:        []string{"files", "write", "filesystem"},
		}}
		cfg.ToolServers = []ToolServerConfig{{
			Command: "npx -y @modelcontextprotocol/server-filesystem " + abs,
		}}
		cfg.Server.Listen = fmt.Sprintf("localhost:%d", WriterPort)
	case PresetRouting:
		cfg.Agent.Name = "Routing Agent"
		cfg.Agent.Description = "Orchestrates tasks across specialized agents"
		cfg.Agent.SystemPrompt = routingPrompt
		cfg.Agent.Skills = []SkillConfig{{
			ID:          "orchestration",
			Name:        "Task Orchestration",
			Description: "Routes tasks to appropriate specialized agents",
			Tags:        []string{"routing", "orchestration", "multi-agent"},
		}}
		cfg.ToolServers = nil
		cfg.Server.Listen = fmt.Sprintf("localhost:%d", RoutingPort)
		if len(cfg.Peers) == 0 {
			cfg.Peers = []string{
				fmt.Sprintf("http://localhost:%d", ResearchPort),
				fmt.Sprintf("http://localhost:%d", WriterPort),
			}
		}
	default:
		return fmt.Errorf("unknown preset %q (want: research, writer, routing)", name)
	}
	cfg.Server.PublicURL = ""
	return nil
}
