package constants

const USER_AGENT = "docprompt/1.0 (+https://github.com/Amund211/docprompt)"
