// Package authconsole answers authorization prompts interactively.
//
// Prompts are written to an io.Writer (os.Stderr by default) and answers are
// read line by line from an io.Reader (os.Stdin by default). When the input is
// a terminal, secrets such as the password and the database encryption key
// are read without echo.
//
// One Handler may serve many sessions; every prompt names the session it is
// for, and prompts never interleave.
package authconsole
