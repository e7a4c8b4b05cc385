package build

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewriteImportLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"relative single quotes", "import '../lib/SafeMath.sol';\n", "import './SafeMath.sol';\n"},
		{"relative double quotes", "import \"./interfaces/IERC20.sol\";\n", "import \"./IERC20.sol\";\n"},
		{"bare path", "import \"contracts/Token.sol\";\n", "import \"./Token.sol\";\n"},
		{"symbol list", "import {IERC20, SafeERC20} from \"../token/IERC20.sol\";\n", "import {IERC20, SafeERC20} from \"./IERC20.sol\";\n"},
		{"star alias", "import * as Math from '../utils/Math.sol';\n", "import * as Math from './Math.sol';\n"},
		{"path alias", "import \"../Owned.sol\" as Owned;\n", "import \"./Owned.sol\" as Owned;\n"},
		{"trailing comment", "import './a/b/C.sol'; // local\n", "import './C.sol'; // local\n"},
		{"crlf terminator", "import \"lib/Token.sol\";\r\n", "import \"./Token.sol\";\r\n"},
		{"no terminator", "import \"lib/Token.sol\";", "import \"./Token.sol\";"},
		{"leading whitespace", "  import \"lib/Token.sol\";\n", "  import \"./Token.sol\";\n"},
		{"windows separators", "import \"lib\\Token.sol\";\n", "import \"./Token.sol\";\n"},
		{"external package", "import \"@openzeppelin/contracts/token/ERC20/ERC20.sol\";\n", "import \"@openzeppelin/contracts/token/ERC20/ERC20.sol\";\n"},
		{"external symbol list", "import {Ownable} from '@openzeppelin/contracts/access/Ownable.sol';\n", "import {Ownable} from '@openzeppelin/contracts/access/Ownable.sol';\n"},
		{"already flat", "import './Token.sol';\n", "import './Token.sol';\n"},
		{"not an import", "contract Token is ERC20 {\n", "contract Token is ERC20 {\n"},
		{"identifier prefix", "importantValue = 1;\n", "importantValue = 1;\n"},
		{"commented import", "// import \"../Old.sol\";\n", "// import \"../Old.sol\";\n"},
		{"multi-line import start", "import {\n", "import {\n"},
		{"multi-line import end", "} from \"../lib/Token.sol\";\n", "} from \"../lib/Token.sol\";\n"},
		{"unterminated literal", "import \"../lib/Token.sol;\n", "import \"../lib/Token.sol;\n"},
		{"empty path", "import \"\";\n", "import \"\";\n"},
		{"empty line", "\n", "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RewriteImportLine(tt.in))
		})
	}
}

func TestRewriteImportLineIdempotent(t *testing.T) {
	lines := []string{
		"import '../lib/SafeMath.sol';\n",
		"import {A, B} from \"x/y/z/AB.sol\";\r\n",
		"import \"@openzeppelin/contracts/utils/Context.sol\";\n",
		"pragma solidity ^0.8.0;\n",
	}

	for _, line := range lines {
		once := RewriteImportLine(line)
		assert.Equal(t, once, RewriteImportLine(once), "line %q", line)
	}
}

func TestIsLocalImport(t *testing.T) {
	assert.True(t, IsLocalImport("../Token.sol"))
	assert.True(t, IsLocalImport("hardhat/console.sol"))
	assert.False(t, IsLocalImport("@openzeppelin/contracts/token/ERC20/ERC20.sol"))
	assert.False(t, IsLocalImport(""))
}
