package handlers

// Version is reported in /api/health, run records, and the CLI.
const Version = "1.0.0"
