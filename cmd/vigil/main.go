// Command vigil runs the LLM quality-risk observability service.
//
// Usage:
//
//	# Serve POST /chat with the environment configuration
//	vigil serve
//
//	# Score a prompt/response pair offline
//	vigil score --prompt "What is AI?" --response "It is perhaps..." --confidence 0.6
package main

func main() {
	Execute()
}
