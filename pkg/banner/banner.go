package banner

import (
	"fmt"

	"channeld/pkg/config"
)

const banner = `
 ██████╗██╗  ██╗ █████╗ ███╗   ██╗███╗   ██╗███████╗██╗     ██████╗
██╔════╝██║  ██║██╔══██╗████╗  ██║████╗  ██║██╔════╝██║     ██╔══██╗
██║     ███████║███████║██╔██╗ ██║██╔██╗ ██║█████╗  ██║     ██║  ██║
██║     ██╔══██║██╔══██║██║╚██╗██║██║╚██╗██║██╔══╝  ██║     ██║  ██║
╚██████╗██║  ██║██║  ██║██║ ╚████║██║ ╚████║███████╗███████╗██████╔╝
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝╚═╝  ╚═══╝╚═╝  ╚═══╝╚══════╝╚══════╝╚═════╝
`

// Print writes the startup banner with the effective runtime settings.
func Print(eff config.Effective, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", eff.Addr)
	fmt.Printf("DB Path:  %s\n", eff.DBPath)
	fmt.Printf("Broker:   %s (subject %s)\n", eff.Config.Broker.URL, eff.Config.Broker.Subject)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config source: %s\n", eff.Source)
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET    /v1/channels                - list visible channels")
	fmt.Println("POST   /v1/channels                - create a channel")
	fmt.Println("GET    /v1/channels/{id}           - recent messages, oldest first")
	fmt.Println("POST   /v1/channels/{id}           - post a message")
	fmt.Println("PATCH  /v1/channels/{id}           - rename/re-describe (creator)")
	fmt.Println("DELETE /v1/channels/{id}           - delete channel (creator)")
	fmt.Println("POST   /v1/channels/{id}/members   - add member (creator, private)")
	fmt.Println("DELETE /v1/channels/{id}/members   - remove member (creator, private)")
	fmt.Println("PATCH  /v1/messages/{id}           - edit message (creator)")
	fmt.Println("DELETE /v1/messages/{id}           - delete message (creator)")
	fmt.Println("\nAll /v1 routes require the X-User identity header.")
}
