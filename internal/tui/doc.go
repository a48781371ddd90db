// Package tui contains the interactive Bubble Tea screens of wsecho-cli.
//
// ChatModel keeps one connection open and shows every message with its echo
// and round-trip time. Sending happens in a tea.Cmd so the screen stays
// responsive while a reply is outstanding; a close frame from the server
// ends the session and disables the input.
//
//	c, err := client.Dial(ctx, url, client.Options{})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	_, err = tea.NewProgram(tui.NewChatModel(c, url, 10*time.Second)).Run()
package tui
