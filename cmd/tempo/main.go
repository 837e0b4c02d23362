// Tempo CLI tool exercises the tempo scheduler with synthetic
// workloads.
package main

func main() {
	Execute()
}
