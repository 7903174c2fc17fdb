package headercodec

// spdyDictionary is the fixed zlib dictionary SPDY/3 uses to seed the
// deflate window for name/value header blocks, SPDY/3.1 §2.6.10. Both peers
// must use the same bytes or decompression desynchronizes immediately.
var spdyDictionary = []byte(
	"optionsgetheadpostputdeletetraceacceptaccept-charsetaccept-encodingaccept-" +
		"languageauthorizationexpectfromhostif-modified-sinceif-matchif-none-matc" +
		"hif-rangeif-unmodifiedsincemax-forwardsproxy-authorizationrangerefererte" +
		"userpartial-closeretry-aftersTE-contentresultusertextetreferer-rangerangeus" +
		"user-agent10010120020120220320420520630030130230330430530630740040140240" +
		"340440540640740840940041041141241341441541641741841910010110210310410510" +
		"610710810911101111121113111411151116111711181119120012011202accept-rang" +
		"esageetaglocationproxy-authenticatepublicretry-afterservervaryallowcont" +
		"ent-basecontent-encodingcache-controlconnectiondatetrailertransfer-enco" +
		"dingupgradeviawarningwww-authenticatemethodsetcookiemisc-" +
		"infocontent-disposition",
)
