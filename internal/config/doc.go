// Package config loads rule sets from INI or YAML files.
//
// Both formats describe an ordered list of entries. Each entry names
// literal hosts and/or regular expression patterns, and either marks them
// direct or names the SOCKS5 server ("host:port") and optional credentials
// to use for them.
//
// INI files use one section per entry, in file order, with repeatable
// host and pattern keys:
//
//	[internal]
//	pattern = \.corp\.example\z
//	server = 10.0.0.1:1080
//	username = alice
//	password = secret
//
//	[local]
//	host = localhost
//	host = 127.0.0.1
//	direct = true
//
// YAML files hold the same entries under a top-level rules list:
//
//	rules:
//	  - name: internal
//	    patterns: ['\.corp\.example\z']
//	    server: 10.0.0.1:1080
//	  - hosts: [localhost, 127.0.0.1]
//	    direct: true
package config
