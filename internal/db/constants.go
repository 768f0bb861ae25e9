package db

// timeLayout is the text form used for DATETIME columns so that SQLite's
// date functions can compare them.
const timeLayout = "2006-01-02 15:04:05"
