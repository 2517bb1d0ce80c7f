// Package clamd provides a Go client for the ClamAV daemon (clamd) TCP protocol.
//
// Each operation opens a fresh TCP connection, sends a single NUL-terminated
// command ("zVERSION\0", "zSCAN /path\0", "zINSTREAM\0", ...) and reads the
// reply until clamd closes the connection. Content uploaded with INSTREAM is
// sent as 4-byte big-endian length-prefixed chunks followed by a zero-length
// chunk.
//
// # Quick Start
//
//	client, err := clamd.NewClient("localhost", clamd.WithPort(3310))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := client.ScanFilePath(ctx, "/path/to/file.pdf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Status: %s, Infected: %v\n", result.Status, result.IsInfected())
//	for _, f := range result.InfectedFiles {
//	    fmt.Printf("%s:%s\n", f.FileName, f.VirusName)
//	}
//
// Replies are classified by ParseScanResult. Replies that match none of
// "OK", "ERROR" or "FOUND" yield StatusUnknown, or an error when the client
// is built with WithStrictResponses.
package clamd
