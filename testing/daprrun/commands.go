package daprrun

import (
	"strconv"
	"strings"

	"github.com/valyala/fasttemplate"

	"github.com/circleci/daprit/testing/command"
)

const (
	// SidecarUpMessage is printed by dapr run once the sidecar is serving.
	SidecarUpMessage = "You're up and running!"
	// StoppedMessage is printed by dapr stop when the app was found and stopped.
	StoppedMessage = "app stopped successfully"
)

// Service is an application launched alongside the sidecar.
type Service struct {
	// Name distinguishes the run identity from other services in the same test.
	Name string
	// Command launches the application. It may reference the run with the tags
	// {{app_port}}, {{http_port}}, {{grpc_port}} and {{app_id}}. Ports the run does not
	// expose render empty.
	Command string
}

// commands are the dapr CLI invocations of one run.
type commands struct {
	start command.Command
	list  command.Command
	stop  command.Command
}

func newCommands(cfg Config, id string, app string) commands {
	dapr := quote(cfg.DaprBinary)

	args := []string{dapr, "run", "--app-id", quote(id), "--components-path", quote(cfg.ComponentsPath)}
	if p, ok := cfg.Ports.App(); ok {
		args = append(args, "--app-port", strconv.Itoa(p))
	}
	if p, ok := cfg.Ports.HTTP(); ok {
		args = append(args, "--dapr-http-port", strconv.Itoa(p))
	}
	if p, ok := cfg.Ports.GRPC(); ok {
		args = append(args, "--dapr-grpc-port", strconv.Itoa(p))
	}
	if app != "" {
		args = append(args, "--", app)
	}

	withOutput := func(c command.Command) command.Command {
		c.Output = cfg.Output
		return c
	}
	return commands{
		start: withOutput(command.New(cfg.SuccessMessage, strings.Join(args, " "))),
		list:  withOutput(command.New(id, dapr+" list")),
		stop:  withOutput(command.New(StoppedMessage, dapr+" stop --app-id "+quote(id))),
	}
}

// render expands the service launch template for a run.
func render(tpl *fasttemplate.Template, id string, ports PortSet) string {
	portTag := func(p int, ok bool) string {
		if !ok {
			return ""
		}
		return strconv.Itoa(p)
	}
	return tpl.ExecuteString(map[string]interface{}{
		"app_id":    id,
		"app_port":  portTag(ports.App()),
		"http_port": portTag(ports.HTTP()),
		"grpc_port": portTag(ports.GRPC()),
	})
}

// quote single quotes s when the command line splitter would otherwise break it apart.
func quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\#") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
